package bit

import (
	"testing"
)

func TestIsSet(t *testing.T) {
	tests := []struct {
		byte     uint8
		index    uint8
		expected bool
	}{
		{0b10101010, 0, false},
		{0b10101010, 1, true},
		{0b10101010, 2, false},
		{0b10101010, 7, true},
	}

	for _, tt := range tests {
		result := IsSet(tt.index, tt.byte)
		if result != tt.expected {
			t.Errorf("IsSet(%d, %08b) = %v; want %v", tt.index, tt.byte, result, tt.expected)
		}
	}
}

func TestIsSet16(t *testing.T) {
	tests := []struct {
		value    uint16
		index    uint8
		expected bool
	}{
		{0x8000, 15, true},
		{0x7FFF, 15, false},
		{0x0001, 0, true},
		{0xFFFE, 0, false},
	}

	for _, tt := range tests {
		result := IsSet16(tt.index, tt.value)
		if result != tt.expected {
			t.Errorf("IsSet16(%d, %04X) = %v; want %v", tt.index, tt.value, result, tt.expected)
		}
	}
}

func TestSetClear(t *testing.T) {
	tests := []struct {
		byte      uint8
		index     uint8
		set       uint8
		cleared   uint8
	}{
		{0b00000000, 0, 0b00000001, 0b00000000},
		{0b11111111, 7, 0b11111111, 0b01111111},
		{0b10101010, 2, 0b10101110, 0b10101010},
	}

	for _, tt := range tests {
		if got := Set(tt.index, tt.byte); got != tt.set {
			t.Errorf("Set(%d, %08b) = %08b; want %08b", tt.index, tt.byte, got, tt.set)
		}
		if got := Clear(tt.index, tt.byte); got != tt.cleared {
			t.Errorf("Clear(%d, %08b) = %08b; want %08b", tt.index, tt.byte, got, tt.cleared)
		}
	}
}

func TestCombine32(t *testing.T) {
	tests := []struct {
		high, low uint16
		expected  uint32
	}{
		{0xABCD, 0x1234, 0xABCD1234},
		{0x0000, 0x0000, 0x00000000},
		{0xFFFF, 0xFFFF, 0xFFFFFFFF},
		{0x0001, 0x0000, 0x00010000},
	}

	for _, tt := range tests {
		result := Combine32(tt.high, tt.low)
		if result != tt.expected {
			t.Errorf("Combine32(%X, %X) = %X; want %X", tt.high, tt.low, result, tt.expected)
		}
	}
}

func TestWordSplit(t *testing.T) {
	tests := []struct {
		value     uint32
		high, low uint16
	}{
		{0xABCD1234, 0xABCD, 0x1234},
		{0x0000FFFF, 0x0000, 0xFFFF},
		{0xFFFF0000, 0xFFFF, 0x0000},
	}

	for _, tt := range tests {
		if got := High16(tt.value); got != tt.high {
			t.Errorf("High16(%X) = %X; want %X", tt.value, got, tt.high)
		}
		if got := Low16(tt.value); got != tt.low {
			t.Errorf("Low16(%X) = %X; want %X", tt.value, got, tt.low)
		}
	}
}
