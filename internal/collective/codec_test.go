package collective

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"tagfreq/internal/freq"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   freq.Table
	}{
		{"empty", freq.Table{}},
		{"single", freq.Table{"en": 3}},
		{"unicode and spaces", freq.Table{"#東京": 2, "#ünïcode": 1, "with space": 7, "": 4}},
		{"large counts", freq.Table{"a": 1 << 40, "b": 1}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			frames, err := EncodeTable(tc.in)
			if err != nil {
				t.Fatalf("EncodeTable: %v", err)
			}
			got, err := DecodeTable(frames, DefaultLimits(0))
			if err != nil {
				t.Fatalf("DecodeTable: %v", err)
			}
			if !got.Equal(tc.in) {
				t.Fatalf("got %v, want %v", got, tc.in)
			}
		})
	}
}

func TestEncodeTable_JoinedKeysHaveNoTrailingSeparator(t *testing.T) {
	t.Parallel()

	frames, err := EncodeTable(freq.Table{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}
	if string(frames[3]) != "a,b" {
		t.Fatalf("keys frame = %q, want %q", frames[3], "a,b")
	}
	if n := binary.LittleEndian.Uint64(frames[1]); n != 3 {
		t.Fatalf("declared length = %d, want 3", n)
	}
}

func TestEncodeTable_RejectsSeparator(t *testing.T) {
	t.Parallel()
	if _, err := EncodeTable(freq.Table{"e,n": 1}); !errors.Is(err, ErrSeparatorInKey) {
		t.Fatalf("err = %v, want ErrSeparatorInKey", err)
	}
}

func u64(n uint64) []byte { return binary.LittleEndian.AppendUint64(nil, n) }

func TestDecodeTable_Rejects(t *testing.T) {
	t.Parallel()

	lim := Limits{MaxKeys: 10, MaxBytes: 64}
	tests := []struct {
		name   string
		frames [4][]byte
		want   error
	}{
		{"short header", [4][]byte{{1}, u64(1), u64(1), []byte("a")}, ErrMalformedFrame},
		{"too many keys", [4][]byte{u64(11), u64(20), nil, nil}, ErrFrameTooLarge},
		{"keys too long", [4][]byte{u64(1), u64(65), u64(1), nil}, ErrFrameTooLarge},
		{"no keys with bytes", [4][]byte{u64(0), u64(3), nil, []byte("abc")}, ErrMalformedFrame},
		{"counts size mismatch", [4][]byte{u64(2), u64(3), u64(1), []byte("a,b")}, ErrMalformedFrame},
		{"keys size mismatch", [4][]byte{u64(1), u64(2), u64(1), []byte("a")}, ErrMalformedFrame},
		{"key count mismatch", [4][]byte{u64(1), u64(3), u64(1), []byte("a,b")}, ErrMalformedFrame},
	}
	for _, tc := range tests {
		if _, err := DecodeTable(tc.frames, lim); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestRecvTable_ValidatesHeaderBeforePayload(t *testing.T) {
	t.Parallel()

	g := NewLocalGroup(2)
	defer g.Close()
	ctx := context.Background()
	sender, receiver := g.Comm(1), g.Comm(0)

	// Only the header is sent; the receiver must fail without waiting for
	// the payload frames.
	if err := sender.Send(ctx, 0, frameTag(TableLang, 0), u64(1<<40)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := sender.Send(ctx, 0, frameTag(TableLang, 1), u64(1)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := RecvTable(ctx, receiver, 1, TableLang, DefaultLimits(1024)); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestSendRecvPair(t *testing.T) {
	t.Parallel()

	g := NewLocalGroup(2)
	defer g.Close()
	ctx := context.Background()
	want := freq.Pair{Lang: freq.Table{"en": 2, "es": 1}, Tags: freq.Table{"#foo": 2}}

	errc := make(chan error, 1)
	go func() { errc <- SendPair(ctx, g.Comm(1), 0, want) }()
	got, err := RecvPair(ctx, g.Comm(0), 1, DefaultLimits(0))
	if err != nil {
		t.Fatalf("RecvPair: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("SendPair: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
