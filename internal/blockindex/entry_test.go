package blockindex

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestStatusIsValid(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		level  Status
		want   bool
	}{
		{"unknown below tree", ValidUnknown, ValidTree, false},
		{"tree meets tree", ValidTree, ValidTree, true},
		{"scripts meets scripts", ValidScripts | HaveData, ValidScripts, true},
		{"chain below scripts", ValidChain | HaveData | HaveUndo, ValidScripts, false},
		{"failed scripts", ValidScripts | FailedValid, ValidScripts, false},
		{"failed child", ValidScripts | FailedChild, ValidTree, false},
		{"any level meets unknown", ValidReserved, ValidUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(tt.level); got != tt.want {
				t.Errorf("%v.IsValid(%v) = %v, want %v", tt.status, tt.level, got, tt.want)
			}
		})
	}
}

func TestStatusRaiseValidity(t *testing.T) {
	s := ValidTree | HaveData
	s = s.RaiseValidity(ValidScripts)
	if s.Level() != ValidScripts || s&HaveData == 0 {
		t.Errorf("RaiseValidity = %v, want scripts|data", s)
	}
	if got := s.RaiseValidity(ValidTree); got != s {
		t.Errorf("RaiseValidity must not lower the level: got %v", got)
	}
	failed := ValidTree | FailedValid
	if got := failed.RaiseValidity(ValidScripts); got != failed {
		t.Errorf("RaiseValidity on failed entry = %v, want unchanged", got)
	}
}

func TestStatusString(t *testing.T) {
	if got := (ValidScripts | HaveData | FailedChild).String(); got != "scripts|data|failed-child" {
		t.Errorf("String = %q", got)
	}
}

func TestHashStringRoundTrip(t *testing.T) {
	var h Hash
	h[0] = 0x6f
	h[31] = 0x01
	s := h.String()
	if s[:2] != "01" || s[62:] != "6f" {
		t.Errorf("String() must render reversed bytes, got %s", s)
	}
	parsed, err := ParseHash(s)
	if err != nil {
		t.Fatalf("ParseHash failed: %v", err)
	}
	if parsed != h {
		t.Errorf("ParseHash(String()) = %v, want %v", parsed, h)
	}
	if _, err := ParseHash("0x" + s); err != nil {
		t.Errorf("ParseHash with 0x prefix failed: %v", err)
	}
}

func TestParseHashInvalid(t *testing.T) {
	for _, s := range []string{"", "abcd", "zz" + string(make([]byte, 62))} {
		if _, err := ParseHash(s); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("ParseHash(%q) error = %v, want ErrInvalidHash", s, err)
		}
	}
}

func TestWorkFromBits(t *testing.T) {
	tests := []struct {
		name string
		bits uint32
		want *uint256.Int
	}{
		// Difficulty-1 target.
		{"genesis", 0x1d00ffff, uint256.NewInt(0x100010001)},
		// Regtest minimum difficulty: target 0x7fffff << 232, work 2.
		{"regtest", 0x207fffff, uint256.NewInt(2)},
		{"zero mantissa", 0x1d000000, new(uint256.Int)},
		{"negative", 0x1d800001, new(uint256.Int)},
		{"overflow", 0x23000001, new(uint256.Int)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WorkFromBits(tt.bits)
			if !got.Eq(tt.want) {
				t.Errorf("WorkFromBits(%#x) = %s, want %s", tt.bits, got.Hex(), tt.want.Hex())
			}
		})
	}
}

func TestWorkFromBitsMonotonic(t *testing.T) {
	// A smaller target means more work.
	easy := WorkFromBits(0x1d00ffff)
	hard := WorkFromBits(0x1c00ffff)
	if hard.Cmp(easy) <= 0 {
		t.Errorf("work(0x1c00ffff)=%s should exceed work(0x1d00ffff)=%s", hard.Hex(), easy.Hex())
	}
}

func TestEntryWorkAndGenesis(t *testing.T) {
	e := &Entry{}
	if !e.Work().IsZero() {
		t.Error("nil ChainWork should read as zero")
	}
	if !e.IsGenesis() {
		t.Error("height 0 with zero parent should be genesis")
	}
	e.Height = 1
	if e.IsGenesis() {
		t.Error("height 1 should not be genesis")
	}
}
