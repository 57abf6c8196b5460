package attestation

import (
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// 账本地址使用 ripple 字母表的 base58check，版本字节为 0，载荷为 20 字节账户 ID。
// 两个字母表字符集相同，只是顺序不同，因此逐字符映射后即可复用 btcutil 的实现。
const (
	rippleAlphabet  = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"
	bitcoinAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

	accountVersion byte = 0x00
)

var (
	rippleToBitcoin = alphabetReplacer(rippleAlphabet, bitcoinAlphabet)
	bitcoinToRipple = alphabetReplacer(bitcoinAlphabet, rippleAlphabet)
)

func alphabetReplacer(from, to string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(from))
	for i := 0; i < len(from); i++ {
		pairs = append(pairs, from[i:i+1], to[i:i+1])
	}
	return strings.NewReplacer(pairs...)
}

// DecodeLedgerAddress 解析账本地址并返回 20 字节账户 ID。
func DecodeLedgerAddress(address string) ([AccountIDLength]byte, error) {
	var id [AccountIDLength]byte
	if address == "" || !strings.HasPrefix(address, "r") {
		return id, base58.ErrInvalidFormat
	}
	payload, version, err := base58.CheckDecode(rippleToBitcoin.Replace(address))
	if err != nil {
		return id, err
	}
	if version != accountVersion || len(payload) != AccountIDLength {
		return id, base58.ErrInvalidFormat
	}
	copy(id[:], payload)
	return id, nil
}

// EncodeLedgerAddress 将账户 ID 还原为账本地址。
func EncodeLedgerAddress(id [AccountIDLength]byte) string {
	return bitcoinToRipple.Replace(base58.CheckEncode(id[:], accountVersion))
}

// ValidLedgerAddress 判断字符串是否为合法的账本地址。
func ValidLedgerAddress(address string) bool {
	_, err := DecodeLedgerAddress(address)
	return err == nil
}

// OwnerAccountField 把账户 ID 放在 32 字节 owner 字段的前 20 字节，其余补零。
func OwnerAccountField(id [AccountIDLength]byte) [DigestLength]byte {
	var field [DigestLength]byte
	copy(field[:], id[:])
	return field
}

// AccountIDFromOwnerField 从 owner 字段取回账户 ID，补零区非零时返回 false。
func AccountIDFromOwnerField(field [DigestLength]byte) ([AccountIDLength]byte, bool) {
	var id [AccountIDLength]byte
	for _, b := range field[AccountIDLength:] {
		if b != 0 {
			return id, false
		}
	}
	copy(id[:], field[:AccountIDLength])
	return id, true
}
