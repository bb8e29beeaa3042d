package collective

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tagfreq/internal/freq"
)

// Wire format of one table, sent as four frames in this order:
//
//	0: number of keys            (uint64, little endian)
//	1: length of the joined keys (uint64, little endian)
//	2: counts                    (count x uint64, little endian, key order)
//	3: keys joined by KeySep     (no trailing separator)
//
// The receiver reads the two header frames first and validates them against
// its Limits before accepting the payload frames.
const (
	framesPerTable = 4
	KeySep         = ","
)

// Table indices used to derive message tags.
const (
	TableLang = 0
	TableTags = 1
)

var (
	ErrFrameTooLarge  = errors.New("collective: declared frame size exceeds limit")
	ErrMalformedFrame = errors.New("collective: malformed frame")
	ErrSeparatorInKey = errors.New("collective: key contains the separator")
)

// DefaultMaxBytes bounds a single payload frame.
const DefaultMaxBytes = 1 << 30

// Limits bounds what a receiver accepts from a peer.
type Limits struct {
	MaxKeys  uint64 // maximum number of keys in one table
	MaxBytes uint64 // maximum size of the counts or keys frame
}

// DefaultLimits derives limits from a maximum frame size in bytes.
func DefaultLimits(maxFrame int64) Limits {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxBytes
	}
	return Limits{MaxKeys: uint64(maxFrame) / 8, MaxBytes: uint64(maxFrame)}
}

func frameTag(table, i int) int { return table*framesPerTable + i }

// EncodeTable renders t as its four frames. Keys are written in sorted order.
func EncodeTable(t freq.Table) ([framesPerTable][]byte, error) {
	var frames [framesPerTable][]byte
	keys := make([]string, 0, len(t))
	for k := range t {
		if strings.Contains(k, KeySep) {
			return frames, fmt.Errorf("%w: %q", ErrSeparatorInKey, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	joined := strings.Join(keys, KeySep)
	counts := make([]byte, 8*len(keys))
	for i, k := range keys {
		binary.LittleEndian.PutUint64(counts[8*i:], t[k])
	}
	frames[0] = binary.LittleEndian.AppendUint64(nil, uint64(len(keys)))
	frames[1] = binary.LittleEndian.AppendUint64(nil, uint64(len(joined)))
	frames[2] = counts
	frames[3] = []byte(joined)
	return frames, nil
}

// header is the validated content of frames 0 and 1.
type header struct {
	count   uint64
	keysLen uint64
}

func decodeHeader(countFrame, lenFrame []byte, lim Limits) (header, error) {
	if len(countFrame) != 8 || len(lenFrame) != 8 {
		return header{}, fmt.Errorf("%w: header frames must be 8 bytes", ErrMalformedFrame)
	}
	h := header{
		count:   binary.LittleEndian.Uint64(countFrame),
		keysLen: binary.LittleEndian.Uint64(lenFrame),
	}
	if h.count > lim.MaxKeys || h.count > lim.MaxBytes/8 {
		return h, fmt.Errorf("%w: %d keys", ErrFrameTooLarge, h.count)
	}
	if h.keysLen > lim.MaxBytes {
		return h, fmt.Errorf("%w: %d key bytes", ErrFrameTooLarge, h.keysLen)
	}
	if h.count == 0 && h.keysLen != 0 {
		return h, fmt.Errorf("%w: no keys but %d key bytes", ErrMalformedFrame, h.keysLen)
	}
	if h.count > 0 && h.keysLen < h.count-1 {
		return h, fmt.Errorf("%w: %d key bytes cannot hold %d keys", ErrMalformedFrame, h.keysLen, h.count)
	}
	return h, nil
}

func decodePayload(h header, counts, keys []byte) (freq.Table, error) {
	if uint64(len(counts)) != 8*h.count {
		return nil, fmt.Errorf("%w: counts frame is %d bytes, want %d", ErrMalformedFrame, len(counts), 8*h.count)
	}
	if uint64(len(keys)) != h.keysLen {
		return nil, fmt.Errorf("%w: keys frame is %d bytes, want %d", ErrMalformedFrame, len(keys), h.keysLen)
	}
	t := make(freq.Table, h.count)
	if h.count == 0 {
		return t, nil
	}
	parts := bytes.Split(keys, []byte(KeySep))
	if uint64(len(parts)) != h.count {
		return nil, fmt.Errorf("%w: %d keys declared, %d found", ErrMalformedFrame, h.count, len(parts))
	}
	for i, k := range parts {
		t.AddN(string(k), binary.LittleEndian.Uint64(counts[8*i:]))
	}
	return t, nil
}

// DecodeTable parses the four frames of one table.
func DecodeTable(frames [framesPerTable][]byte, lim Limits) (freq.Table, error) {
	h, err := decodeHeader(frames[0], frames[1], lim)
	if err != nil {
		return nil, err
	}
	return decodePayload(h, frames[2], frames[3])
}

// SendTable sends t to rank to as table number table.
func SendTable(ctx context.Context, c Comm, to, table int, t freq.Table) error {
	frames, err := EncodeTable(t)
	if err != nil {
		return err
	}
	for i, f := range frames {
		if err := c.Send(ctx, to, frameTag(table, i), f); err != nil {
			return fmt.Errorf("send table %d frame %d to rank %d: %w", table, i, to, err)
		}
	}
	return nil
}

// RecvTable receives table number table from rank from.
func RecvTable(ctx context.Context, c Comm, from, table int, lim Limits) (freq.Table, error) {
	var frames [framesPerTable][]byte
	for i := 0; i < 2; i++ {
		f, err := c.Recv(ctx, from, frameTag(table, i))
		if err != nil {
			return nil, fmt.Errorf("recv table %d frame %d from rank %d: %w", table, i, from, err)
		}
		frames[i] = f
	}
	h, err := decodeHeader(frames[0], frames[1], lim)
	if err != nil {
		return nil, fmt.Errorf("table %d from rank %d: %w", table, from, err)
	}
	for i := 2; i < framesPerTable; i++ {
		f, err := c.Recv(ctx, from, frameTag(table, i))
		if err != nil {
			return nil, fmt.Errorf("recv table %d frame %d from rank %d: %w", table, i, from, err)
		}
		frames[i] = f
	}
	t, err := decodePayload(h, frames[2], frames[3])
	if err != nil {
		return nil, fmt.Errorf("table %d from rank %d: %w", table, from, err)
	}
	return t, nil
}

// SendPair sends the language table, then the hashtag table.
func SendPair(ctx context.Context, c Comm, to int, p freq.Pair) error {
	if err := SendTable(ctx, c, to, TableLang, p.Lang); err != nil {
		return err
	}
	return SendTable(ctx, c, to, TableTags, p.Tags)
}

// RecvPair receives a pair sent with SendPair.
func RecvPair(ctx context.Context, c Comm, from int, lim Limits) (freq.Pair, error) {
	lang, err := RecvTable(ctx, c, from, TableLang, lim)
	if err != nil {
		return freq.Pair{}, err
	}
	tags, err := RecvTable(ctx, c, from, TableTags, lim)
	if err != nil {
		return freq.Pair{}, err
	}
	return freq.Pair{Lang: lang, Tags: tags}, nil
}
