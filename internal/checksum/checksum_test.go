package checksum

import (
	"strings"
	"testing"
)

// TestSum проверяет дайджест известного значения.
func TestSum(t *testing.T) {
	// SHA-256("abc") — эталонное значение из FIPS 180-2
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	got := Sum([]byte("abc"))
	if got != want {
		t.Errorf("Sum(\"abc\"): ожидалось %s, получено %s", want, got)
	}
	if len(got) != HexLength {
		t.Errorf("длина дайджеста: ожидалось %d, получено %d", HexLength, len(got))
	}
}

// TestSum_Deterministic проверяет детерминированность.
func TestSum_Deterministic(t *testing.T) {
	data := []byte("тестовые данные для проверки")
	if Sum(data) != Sum(data) {
		t.Error("дайджест одинаковых данных должен совпадать")
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("дайджесты разных данных не должны совпадать")
	}
}

// TestHasher проверяет потоковый hasher.
func TestHasher(t *testing.T) {
	h := NewHasher()
	h.Write([]byte("ab"))
	h.Write([]byte("c"))

	if got := Encode(h); got != Sum([]byte("abc")) {
		t.Errorf("потоковый дайджест не совпадает с одноразовым: %s", got)
	}
}

// TestEqual проверяет сравнение без учёта регистра.
func TestEqual(t *testing.T) {
	digest := Sum([]byte("abc"))
	upper := strings.ToUpper(digest)

	if !Equal(digest, upper) {
		t.Error("сравнение должно игнорировать регистр")
	}
	if Equal(digest, Sum([]byte("abd"))) {
		t.Error("разные дайджесты не должны считаться равными")
	}
}

// TestIsValidHex проверяет валидацию hex-дайджеста.
func TestIsValidHex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"корректный дайджест", Sum([]byte("abc")), true},
		{"верхний регистр", strings.ToUpper(Sum([]byte("abc"))), true},
		{"пустая строка", "", false},
		{"короткая строка", "ba7816bf", false},
		{"не hex", strings.Repeat("z", HexLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidHex(tt.input); got != tt.want {
				t.Errorf("IsValidHex(%q): ожидалось %v, получено %v", tt.input, tt.want, got)
			}
		})
	}
}
