package protocol

import (
	"errors"
	"fmt"
)

// Номер последовательности передаётся двумя байтами по 6 бит, к каждому
// прибавляется 64: значения 64..127 не пересекаются ни с адресами (128+),
// ни с кодами команд (< 0x20), ни с '<' / '>'.
const (
	seqBias     = 64
	seqBitsPer  = 6
	seqMask     = 1<<seqBitsPer - 1
	MaxSequence = 1<<(2*seqBitsPer) - 1 // 4095
)

// ErrSequenceOverflow — номер не помещается в два 6-битных байта
var ErrSequenceOverflow = errors.New("sequence number exceeds 2x6-bit encoding")

// NewOfferSequenceNumber проверяет диапазон и строит команду offer_sequence_number
func NewOfferSequenceNumber(to byte, seq int) (OfferSequenceNumber, error) {
	if seq < 0 || seq > MaxSequence {
		return OfferSequenceNumber{}, fmt.Errorf("seq %d: %w", seq, ErrSequenceOverflow)
	}
	return OfferSequenceNumber{To: to, Seq: uint16(seq)}, nil
}

func sequenceBytes(seq uint16) (hi, lo byte) {
	hi = byte(seq>>seqBitsPer&seqMask) + seqBias
	lo = byte(seq&seqMask) + seqBias
	return hi, lo
}

// DecodeSequenceNumber — обратное преобразование (сторона платы; используется сниффером и тестами)
func DecodeSequenceNumber(hi, lo byte) (int, error) {
	if hi < seqBias || hi > seqBias+seqMask || lo < seqBias || lo > seqBias+seqMask {
		return 0, fmt.Errorf("seq bytes 0x%02x 0x%02x out of biased range", hi, lo)
	}
	return int(hi-seqBias)<<seqBitsPer | int(lo-seqBias), nil
}
