package fees

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Encode writes a schedule as its kind byte followed by big endian fields.
// A nil schedule encodes as an empty slice.
func Encode(s Schedule) []byte {
	var buf bytes.Buffer
	if s == nil {
		return buf.Bytes()
	}
	buf.WriteByte(byte(s.Kind()))
	switch v := s.(type) {
	case Flat:
		binary.Write(&buf, binary.BigEndian, v.Base)
	case Proportional:
		binary.Write(&buf, binary.BigEndian, v.Base)
		binary.Write(&buf, binary.BigEndian, v.RatePPM)
	case ImbalancePenalty:
		binary.Write(&buf, binary.BigEndian, v.Base)
		binary.Write(&buf, binary.BigEndian, uint32(len(v.Points)))
		for _, p := range v.Points {
			binary.Write(&buf, binary.BigEndian, p.Capacity)
			binary.Write(&buf, binary.BigEndian, p.Penalty)
		}
	}
	return buf.Bytes()
}

// Decode is the inverse of Encode.  The result is validated.
func Decode(b []byte) (Schedule, error) {
	if len(b) == 0 {
		return nil, nil
	}
	buf := bytes.NewBuffer(b[1:])

	var s Schedule
	switch Kind(b[0]) {
	case KindFlat:
		var f Flat
		if err := binary.Read(buf, binary.BigEndian, &f.Base); err != nil {
			return nil, errors.Wrap(err, "flat schedule")
		}
		s = f
	case KindProportional:
		var p Proportional
		if err := binary.Read(buf, binary.BigEndian, &p.Base); err != nil {
			return nil, errors.Wrap(err, "proportional schedule")
		}
		if err := binary.Read(buf, binary.BigEndian, &p.RatePPM); err != nil {
			return nil, errors.Wrap(err, "proportional schedule")
		}
		s = p
	case KindImbalancePenalty:
		var ip ImbalancePenalty
		var n uint32
		if err := binary.Read(buf, binary.BigEndian, &ip.Base); err != nil {
			return nil, errors.Wrap(err, "imbalance schedule")
		}
		if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
			return nil, errors.Wrap(err, "imbalance schedule")
		}
		if int(n)*16 != buf.Len() {
			return nil, errors.Errorf("imbalance schedule has %d points but %d bytes", n, buf.Len())
		}
		ip.Points = make([]Point, n)
		for i := range ip.Points {
			binary.Read(buf, binary.BigEndian, &ip.Points[i].Capacity)
			binary.Read(buf, binary.BigEndian, &ip.Points[i].Penalty)
		}
		s = ip
	default:
		return nil, errors.Wrapf(ErrInvalidSchedule, "unknown kind %d", b[0])
	}

	if buf.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes after %s schedule", buf.Len(), s.Kind())
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
