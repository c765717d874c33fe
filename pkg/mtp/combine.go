package mtp

import (
	"github.com/pkg/errors"
)

// Reassembler combines report packets into reports. Only one report can
// be combined at a time, the first packet of a new report always starts over.
type Reassembler struct {
	buf      [RptMaxWords + 1]uint16
	length   int
	total    int
	combined int
	multi    bool
}

// Reset drops any partially combined report.
func (r *Reassembler) Reset() {
	r.length, r.total, r.combined, r.multi = 0, 0, 0, false
}

// Combine consumes one packet. It returns the report once complete,
// or nil without error if more packets are expected. On error, the
// partially combined report is dropped.
func (r *Reassembler) Combine(pkt *Packet) (*Report, error) {
	if len(pkt.Words) == 0 || len(pkt.Words) < pkt.Size()+1 {
		r.Reset()
		return nil, errors.Wrapf(ErrTransportShortRead, "packet truncated")
	}
	size := pkt.Size()

	if pkt.Seq() == OnePacketSeq {
		r.combined, r.multi = 1, false
		return r.complete(pkt.Words[:size+1]), nil
	}

	total, num := pkt.TotalPackets(), pkt.Number()
	switch {
	case num == 1:
		if pkt.ReportID() != RptTouchRawImage || size < 2 {
			r.Reset()
			return nil, errors.Wrapf(ErrUnexpectedFragment,
				"report %04x can't span multiple packets", pkt.ReportID())
		}
		length := int(pkt.Words[2]) + 2
		if length > RptMaxWords || size > length {
			r.Reset()
			return nil, errors.Wrapf(ErrUnexpectedFragment, "report length %d", length)
		}
		copy(r.buf[:], pkt.Words[:size+1])
		r.length, r.total, r.combined, r.multi = length, total, 1, true
		return nil, nil
	case r.multi && num == r.combined+1 && total == r.total:
		offset := (num-1)*rptFragmentWords + 1
		if offset+size > len(r.buf) {
			r.Reset()
			return nil, errors.Wrapf(ErrUnexpectedFragment,
				"packet %d overflows report (%d words at %d)", num, size, offset)
		}
		r.combined++
		copy(r.buf[offset:], pkt.Words[1:size+1])
		if num != total {
			return nil, nil
		}
		r.multi = false
		return r.complete(r.buf[:r.length+1]), nil
	}

	expected, expectedTotal := r.combined+1, r.total
	r.Reset()
	return nil, errors.Wrapf(ErrUnexpectedFragment, "packet %d/%d, expect %d/%d",
		num, total, expected, expectedTotal)
}

func (r *Reassembler) complete(words []uint16) *Report {
	rpt := &Report{Words: make([]uint16, len(words))}
	copy(rpt.Words, words)
	r.length = len(words) - 1
	return rpt
}
