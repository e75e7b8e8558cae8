package input

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// 支持的输入编码名（大小写不敏感）。
const (
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"
	EncodingEUCJP    = "euc-jp"
	EncodingAuto     = "auto"
)

// UnknownEncodingError 表示配置了不支持的编码名。
type UnknownEncodingError struct {
	Name string
}

func (e *UnknownEncodingError) Error() string {
	return fmt.Sprintf("不支持的输入编码：%q（可选：utf-8 / shift_jis / euc-jp / auto）", e.Name)
}

// InvalidTextError 表示输入按所选编码解码失败。
type InvalidTextError struct {
	Encoding string
}

func (e *InvalidTextError) Error() string {
	return fmt.Sprintf("输入不是合法的 %s 文本", e.Encoding)
}

// NormalizeEncoding 规范化编码名；空串视为 utf-8。
func NormalizeEncoding(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	switch n {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "shift-jis", "sjis", "cp932", "windows-31j":
		return EncodingShiftJIS, nil
	case "euc-jp", "eucjp":
		return EncodingEUCJP, nil
	case "auto":
		return EncodingAuto, nil
	default:
		return "", &UnknownEncodingError{Name: name}
	}
}

// Decode 把 b 按 enc 解码为 UTF-8，并去掉开头的 BOM。
//
// auto：合法 UTF-8 按 UTF-8 处理，否则按 Shift_JIS 尝试。
func Decode(b []byte, enc string) ([]byte, error) {
	name, err := NormalizeEncoding(enc)
	if err != nil {
		return nil, err
	}
	if name == EncodingAuto {
		if utf8.Valid(b) {
			name = EncodingUTF8
		} else {
			name = EncodingShiftJIS
		}
	}

	var dec *encoding.Decoder
	switch name {
	case EncodingShiftJIS:
		dec = japanese.ShiftJIS.NewDecoder()
	case EncodingEUCJP:
		dec = japanese.EUCJP.NewDecoder()
	default:
		if !utf8.Valid(b) {
			return nil, &InvalidTextError{Encoding: EncodingUTF8}
		}
		dec = unicode.UTF8BOM.NewDecoder()
	}

	out, _, err := transform.Bytes(dec, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", &InvalidTextError{Encoding: name}, err)
	}
	return out, nil
}

// ReadFile 读取并解码 path。
func ReadFile(path, enc string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(b, enc)
}
