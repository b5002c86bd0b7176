package audio

import (
	"testing"
)

func TestSampleRing_Write(t *testing.T) {
	rb := NewSampleRing(10)

	// Write data that fits
	data := []float32{1, 2, 3, 4, 5}
	written := rb.Write(data)
	if written != 5 {
		t.Errorf("Expected to write 5 samples, got %d", written)
	}
	if rb.Available() != 5 {
		t.Errorf("Expected available 5, got %d", rb.Available())
	}

	// Write more data
	data2 := []float32{6, 7, 8}
	written = rb.Write(data2)
	if written != 3 {
		t.Errorf("Expected to write 3 samples, got %d", written)
	}
	if rb.Available() != 8 {
		t.Errorf("Expected available 8, got %d", rb.Available())
	}
}

func TestSampleRing_WriteOverflow(t *testing.T) {
	rb := NewSampleRing(5)

	// Fill buffer (size-1 to avoid full/empty ambiguity)
	data := []float32{1, 2, 3, 4}
	rb.Write(data)
	if rb.Available() != 4 {
		t.Errorf("Expected available 4, got %d", rb.Available())
	}
	if !rb.IsFull() {
		t.Error("Expected buffer to be full after writing size-1 samples")
	}

	// Write more (buffer is already full, so 0 samples written)
	data2 := []float32{5, 6}
	written := rb.Write(data2)
	if written != 0 {
		t.Errorf("Expected to write 0 samples (buffer already full), got %d", written)
	}
	if rb.Available() != 4 {
		t.Errorf("Expected available 4 after overflow, got %d", rb.Available())
	}
}

func TestSampleRing_Read(t *testing.T) {
	rb := NewSampleRing(10)

	// Write data
	data := []float32{1, 2, 3, 4, 5}
	rb.Write(data)

	// Read data
	readBuf := make([]float32, 3)
	read := rb.Read(readBuf)
	if read != 3 {
		t.Errorf("Expected to read 3 samples, got %d", read)
	}
	if readBuf[0] != 1 || readBuf[1] != 2 || readBuf[2] != 3 {
		t.Errorf("Read incorrect data: %v", readBuf)
	}
	if rb.Available() != 2 {
		t.Errorf("Expected available 2 after read, got %d", rb.Available())
	}
}

func TestSampleRing_ReadEmpty(t *testing.T) {
	rb := NewSampleRing(10)

	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty initially")
	}

	readBuf := make([]float32, 5)
	read := rb.Read(readBuf)
	if read != 0 {
		t.Errorf("Expected to read 0 samples from empty buffer, got %d", read)
	}
}

func TestSampleRing_ReadMoreThanAvailable(t *testing.T) {
	rb := NewSampleRing(10)

	// Write 3 samples
	data := []float32{1, 2, 3}
	rb.Write(data)

	// Try to read 10 samples
	readBuf := make([]float32, 10)
	read := rb.Read(readBuf)
	if read != 3 {
		t.Errorf("Expected to read 3 samples, got %d", read)
	}
	if rb.Available() != 0 {
		t.Errorf("Expected available 0 after reading all, got %d", rb.Available())
	}
	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty after reading all")
	}
}

func TestSampleRing_Clear(t *testing.T) {
	rb := NewSampleRing(10)

	// Write data
	data := []float32{1, 2, 3, 4, 5}
	rb.Write(data)
	if rb.Available() != 5 {
		t.Errorf("Expected available 5, got %d", rb.Available())
	}

	// Clear
	rb.Clear()
	if rb.Available() != 0 {
		t.Errorf("Expected available 0 after clear, got %d", rb.Available())
	}
	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty after clear")
	}
	if rb.size != 10 {
		t.Errorf("Expected size 10 after clear, got %d", rb.size)
	}
}

func TestSampleRing_WrapAround(t *testing.T) {
	rb := NewSampleRing(5)

	// Fill buffer (size-1 to avoid full/empty ambiguity)
	rb.Write([]float32{1, 2, 3, 4})

	// Read 2 samples
	readBuf := make([]float32, 2)
	rb.Read(readBuf)

	// Write 2 more samples (should wrap around)
	rb.Write([]float32{5, 6})
	if rb.Available() != 4 {
		t.Errorf("Expected available 4, got %d", rb.Available())
	}

	// Read all
	readBuf = make([]float32, 4)
	read := rb.Read(readBuf)
	if read != 4 {
		t.Errorf("Expected to read 4 samples, got %d", read)
	}
	// Should contain 3, 4, 5, 6
	expected := []float32{3, 4, 5, 6}
	for i := 0; i < 4; i++ {
		if readBuf[i] != expected[i] {
			t.Errorf("Expected %v at position %d, got %v", expected[i], i, readBuf[i])
		}
	}
}
