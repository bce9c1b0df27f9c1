package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// 账本使用自有字母表的 base58；btcutil 只认比特币字母表。
// 两者都是 58 进制按位记数，逐字符换表后数值不变，
// 因此先把账本字母表映射为比特币字母表再交给 btcutil 解码。
const (
	ledgerAlphabet  = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"
	bitcoinAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

	// accountIDVersion classic 地址的版本字节
	accountIDVersion = 0x00

	// accountIDLength 账户 ID 长度（字节）
	accountIDLength = 20

	// checksumLength 校验和长度（字节）
	checksumLength = 4
)

// toBitcoinAlphabet 逐字符换表；遇到字母表外的字符返回错误
func toBitcoinAlphabet(addr string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(addr))
	for i := 0; i < len(addr); i++ {
		idx := strings.IndexByte(ledgerAlphabet, addr[i])
		if idx < 0 {
			return "", fmt.Errorf("invalid base58 character %q at position %d", addr[i], i)
		}
		sb.WriteByte(bitcoinAlphabet[idx])
	}
	return sb.String(), nil
}

// DecodeClassicAddress 解码 classic 地址，返回 20 字节账户 ID
//
// **格式**：
// - 版本字节（1字节，0x00）+ 账户 ID（20字节）+ 校验和（4字节）
// - 校验和为前 21 字节双重 SHA256 的前 4 字节
func DecodeClassicAddress(addr string) ([]byte, error) {
	translated, err := toBitcoinAlphabet(addr)
	if err != nil {
		return nil, err
	}

	decoded := base58.Decode(translated)

	// 版本字节（1）+ 账户 ID（20）+ 校验和（4）= 25 字节
	if len(decoded) != 1+accountIDLength+checksumLength {
		return nil, fmt.Errorf("invalid address length: expected 25 bytes after base58 decode, got %d", len(decoded))
	}
	if decoded[0] != accountIDVersion {
		return nil, fmt.Errorf("invalid address version byte: 0x%02x", decoded[0])
	}

	payload := decoded[:1+accountIDLength]
	checksum := decoded[1+accountIDLength:]

	hash1 := sha256.Sum256(payload)
	hash2 := sha256.Sum256(hash1[:])
	for i := 0; i < checksumLength; i++ {
		if checksum[i] != hash2[i] {
			return nil, fmt.Errorf("address checksum mismatch")
		}
	}

	return decoded[1 : 1+accountIDLength], nil
}

// IsValidClassicAddress 校验 classic 地址
func IsValidClassicAddress(addr string) bool {
	if len(addr) == 0 || addr[0] != 'r' {
		return false
	}
	_, err := DecodeClassicAddress(addr)
	return err == nil
}
