package analysis

import (
	"fmt"
	"strings"
)

// DefaultPriceSources are the market pages the analyst prompt points the
// model at when no sources are configured.
var DefaultPriceSources = []string{
	"https://congthuong.vn/chu-de/gia-lua-gao-hom-nay.topic",
	"https://thitruongluagao.com/group/1/597/thi-truong-lua-va-tien-do-san-xuat",
	"https://gaophuongnam.vn/gia-lua-gao-hom-nay",
}

// BuildPrompt renders the rice-market analyst prompt over the given source
// URLs. The model is instructed to answer with the exact JSON shape
// ParseResult expects.
func BuildPrompt(sources []string) string {
	if len(sources) == 0 {
		sources = DefaultPriceSources
	}
	var list strings.Builder
	for i, url := range sources {
		fmt.Fprintf(&list, "%d. %s\n", i+1, url)
	}

	return fmt.Sprintf(`Bạn là chuyên gia phân tích thị trường lúa gạo Việt Nam. Hãy truy cập và phân tích thông tin từ các trang web sau:

%s
Yêu cầu phân tích chi tiết:
1. Tóm tắt tình hình giá lúa gạo hiện tại
2. Giá cụ thể của:
   - Lúa tươi (VNĐ/kg)
   - Gạo xuất khẩu (USD/tấn)
   - Gạo trong nước (VNĐ/kg)
3. Xu hướng giá (tăng/giảm/ổn định)
4. Các giống lúa được nhắc đến (ST24, ST25, IR504, ĐT8, Jasmine, Nàng Hương, v.v.), giá của từng giống và tỉnh thành nơi có giá đó
5. Những thông tin quan trọng về thị trường và nguyên nhân ảnh hưởng đến giá

Trả về kết quả theo định dạng JSON như sau:
{
  "summary": "Tóm tắt tình hình thị trường",
  "priceData": {
    "freshRice": "Giá lúa tươi",
    "exportRice": "Giá gạo xuất khẩu",
    "domesticRice": "Giá gạo trong nước",
    "trend": "tăng/giảm/ổn định"
  },
  "riceVarieties": [
    {"variety": "Tên giống lúa", "price": "Giá cụ thể", "province": "Tỉnh thành"}
  ],
  "marketInsights": ["Thông tin 1", "Thông tin 2"],
  "lastUpdated": "Thời gian cập nhật"
}

Lưu ý: chỉ trả về JSON, không thêm text khác. Nếu không tìm thấy thông tin cụ thể, hãy sử dụng thông tin tổng quát có sẵn.`, list.String())
}
