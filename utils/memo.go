package utils

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeMemoHex 将明文编码为账本 memo 字段使用的大写 hex（不带 0x 前缀）
func EncodeMemoHex(s string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(s)))
}

// DecodeMemoHex 解码 memo 字段 hex，供展示层还原明文
func DecodeMemoHex(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode memo hex: %w", err)
	}
	return string(b), nil
}
