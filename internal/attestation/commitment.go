package attestation

import "crypto/sha256"

// HashIdentity 将身份字节绑定为 32 字节承诺，承诺中不暴露明文身份。
func HashIdentity(value []byte) [DigestLength]byte {
	return sha256.Sum256(value)
}

// HashIdentityString 是 HashIdentity 的字符串版本，按 UTF-8 字节计算。
func HashIdentityString(value string) [DigestLength]byte {
	return HashIdentity([]byte(value))
}
