package indexlog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
)

// syncableBuffer is a bytes.Buffer that implements Sync()
type syncableBuffer struct {
	bytes.Buffer
	syncCalled bool
}

func (s *syncableBuffer) Sync() error {
	s.syncCalled = true
	return nil
}

func readAll(t *testing.T, data []byte) [][]byte {
	t.Helper()
	r := NewReader(bytes.NewReader(data), true)
	var records [][]byte
	for {
		rec, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			return records
		}
		if err != nil {
			t.Fatalf("ReadRecord failed: %v", err)
		}
		records = append(records, rec)
	}
}

func TestRecordTypeString(t *testing.T) {
	testCases := []struct {
		rt   RecordType
		want string
	}{
		{ZeroType, "ZeroType"},
		{FullType, "FullType"},
		{FirstType, "FirstType"},
		{MiddleType, "MiddleType"},
		{LastType, "LastType"},
		{RecordType(200), "UnknownType"},
	}
	for _, tc := range testCases {
		if got := tc.rt.String(); got != tc.want {
			t.Errorf("RecordType(%d).String() = %q, want %q", tc.rt, got, tc.want)
		}
	}
}

func TestWriterSync(t *testing.T) {
	buf := &syncableBuffer{}
	w := NewWriter(buf, 0)
	if _, err := w.AddRecord([]byte("record")); err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if !buf.syncCalled {
		t.Error("Sync was not called on the underlying writer")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		records [][]byte
	}{
		{"empty record", [][]byte{{}}},
		{"small records", [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}},
		{"spans blocks", [][]byte{bytes.Repeat([]byte("x"), 3*BlockSize+123)}},
		{"fills block exactly", [][]byte{bytes.Repeat([]byte("y"), MaxRecordPayload), []byte("next")}},
		{"leaves padding", [][]byte{bytes.Repeat([]byte("z"), BlockSize-HeaderSize-3), []byte("after pad")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf, 0)
			for _, rec := range tt.records {
				if _, err := w.AddRecord(rec); err != nil {
					t.Fatalf("AddRecord failed: %v", err)
				}
			}
			if w.Offset() != int64(buf.Len()) {
				t.Errorf("Offset = %d, want %d", w.Offset(), buf.Len())
			}

			got := readAll(t, buf.Bytes())
			if len(got) != len(tt.records) {
				t.Fatalf("read %d records, want %d", len(got), len(tt.records))
			}
			for i := range got {
				if !bytes.Equal(got[i], tt.records[i]) {
					t.Errorf("record %d mismatch: %d bytes, want %d", i, len(got[i]), len(tt.records[i]))
				}
			}
		})
	}
}

func TestReaderTornTail(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	var ends []int64
	for i := range 20 {
		rec := bytes.Repeat([]byte{byte(i)}, 5000+i*97)
		if _, err := w.AddRecord(rec); err != nil {
			t.Fatalf("AddRecord failed: %v", err)
		}
		ends = append(ends, w.Offset())
	}
	full := buf.Bytes()

	for _, cut := range []int{1, HeaderSize, 4000, BlockSize - 1, BlockSize + 9, len(full) - 1} {
		t.Run(fmt.Sprintf("cut=%d", cut), func(t *testing.T) {
			r := NewReader(bytes.NewReader(full[:cut]), true)
			count := 0
			for {
				_, err := r.ReadRecord()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("torn tail must read as EOF, got %v", err)
				}
				count++
			}

			wantCount := 0
			var wantEnd int64
			for _, end := range ends {
				if end <= int64(cut) {
					wantCount++
					wantEnd = end
				}
			}
			if count != wantCount {
				t.Errorf("read %d records, want %d", count, wantCount)
			}
			if r.LastRecordEnd() != wantEnd {
				t.Errorf("LastRecordEnd = %d, want %d", r.LastRecordEnd(), wantEnd)
			}
		})
	}
}

func TestWriterResumeAfterTruncate(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	w.AddRecord(bytes.Repeat([]byte("a"), BlockSize-100))
	w.AddRecord(bytes.Repeat([]byte("b"), 500))

	// Simulate a crash halfway through the second record.
	r := NewReader(bytes.NewReader(buf.Bytes()[:BlockSize+20]), true)
	for {
		if _, err := r.ReadRecord(); err != nil {
			break
		}
	}
	valid := r.LastRecordEnd()
	torn := append([]byte(nil), buf.Bytes()[:valid]...)

	out := bytes.NewBuffer(torn)
	w2 := NewWriter(out, valid)
	if _, err := w2.AddRecord([]byte("resumed")); err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}

	got := readAll(t, out.Bytes())
	if len(got) != 2 {
		t.Fatalf("read %d records, want 2", len(got))
	}
	if string(got[1]) != "resumed" {
		t.Errorf("second record = %q, want 'resumed'", got[1])
	}
}

func TestReaderChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	w.AddRecord([]byte("first"))
	w.AddRecord([]byte("second"))

	data := buf.Bytes()
	data[HeaderSize+len("first")+HeaderSize+2] ^= 0xff

	r := NewReader(bytes.NewReader(data), true)
	if _, err := r.ReadRecord(); err != nil {
		t.Fatalf("first record should read: %v", err)
	}
	if _, err := r.ReadRecord(); !errors.Is(err, ErrCorruptedRecord) {
		t.Errorf("ReadRecord error = %v, want ErrCorruptedRecord", err)
	}

	// With verification disabled the corrupted payload is returned as is.
	r = NewReader(bytes.NewReader(data), false)
	r.ReadRecord()
	if rec, err := r.ReadRecord(); err != nil || len(rec) != len("second") {
		t.Errorf("unverified ReadRecord = %q, %v", rec, err)
	}
}

func TestReaderInvalidRecordType(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	w.AddRecord([]byte("x"))
	data := buf.Bytes()
	data[6] = 42

	r := NewReader(bytes.NewReader(data), false)
	if _, err := r.ReadRecord(); !errors.Is(err, ErrInvalidRecordType) {
		t.Errorf("error = %v, want ErrInvalidRecordType", err)
	}
}

func TestReaderOrphanFragment(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	w.AddRecord(bytes.Repeat([]byte("m"), BlockSize+10))

	// Drop the first block: the log now starts with a LastType fragment.
	r := NewReader(bytes.NewReader(buf.Bytes()[BlockSize:]), true)
	if _, err := r.ReadRecord(); !errors.Is(err, ErrCorruptedRecord) {
		t.Errorf("error = %v, want ErrCorruptedRecord", err)
	}
}
