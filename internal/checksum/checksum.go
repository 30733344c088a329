// Пакет checksum — вычисление и сравнение SHA-256 дайджестов содержимого.
// Дайджест фиксируется при загрузке и используется для проверки
// целостности, поэтому формат (hex, нижний регистр) един для всего сервиса.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// HexLength — длина hex-представления SHA-256 дайджеста.
const HexLength = 64

// Sum возвращает hex-представление SHA-256 дайджеста данных.
func Sum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// NewHasher возвращает потоковый SHA-256 hasher для подсчёта
// дайджеста во время записи (io.TeeReader в blobstore).
func NewHasher() hash.Hash {
	return sha256.New()
}

// Encode возвращает hex-представление накопленного дайджеста.
func Encode(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Equal сравнивает два hex-дайджеста без учёта регистра.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// IsValidHex проверяет, что строка — корректный hex-дайджест SHA-256.
func IsValidHex(s string) bool {
	if len(s) != HexLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
