package providers

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// gribParam identifies a GRIB2 field by discipline / parameter category /
// parameter number (WMO code table 4.2).
type gribParam struct {
	discipline uint8
	category   uint8
	number     uint8
}

var (
	paramWaveHeight    = gribParam{10, 0, 3} // HTSGW
	paramWaveDirection = gribParam{10, 0, 4} // WVDIR
	paramWavePeriod    = gribParam{10, 0, 6} // WVPER
	paramWindSpeed     = gribParam{0, 2, 1}  // WIND
)

// gribDecodeSlots bounds concurrent GRIB2 decodes. The decode is CPU-bound
// and must never be allowed to monopolize the scheduler during a fan-out.
var gribDecodeSlots = make(chan struct{}, 2)

// decodeGRIBMeans runs the blocking GRIB2 decode on the bounded worker pool
// and returns the spatial mean of every recognized field in the file.
func decodeGRIBMeans(ctx context.Context, data []byte) (map[gribParam]float64, error) {
	select {
	case gribDecodeSlots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-gribDecodeSlots }()

	return decodeGRIB2(data)
}

// decodeGRIB2 walks every message in a GRIB2 file and averages the defined
// grid points of each field. Only simple packing (template 5.0) is handled;
// that is what the NOMADS wave filter emits.
func decodeGRIB2(data []byte) (map[gribParam]float64, error) {
	means := make(map[gribParam]float64)

	offset := 0
	for offset < len(data) {
		idx := bytes.Index(data[offset:], []byte("GRIB"))
		if idx < 0 {
			break
		}
		start := offset + idx
		if start+16 > len(data) {
			break
		}

		edition := data[start+7]
		totalLen := int(binary.BigEndian.Uint64(data[start+8 : start+16]))
		if edition != 2 || totalLen <= 16 || start+totalLen > len(data) {
			offset = start + 4
			continue
		}

		param, mean, err := decodeMessage(data[start : start+totalLen])
		if err == nil {
			if _, seen := means[param]; !seen {
				means[param] = mean
			}
		}
		offset = start + totalLen
	}

	if len(means) == 0 {
		return nil, errors.New("no decodable GRIB2 fields")
	}
	return means, nil
}

func decodeMessage(msg []byte) (gribParam, float64, error) {
	param := gribParam{discipline: msg[6]}

	var (
		numPoints   int
		refValue    float64
		binScale    int
		decScale    int
		bitsPerVal  int
		haveProduct bool
		havePacking bool
		bitmap      []byte
		packed      []byte
	)

	pos := 16
	for pos+5 <= len(msg) {
		if bytes.Equal(msg[pos:pos+4], []byte("7777")) {
			break
		}
		secLen := int(binary.BigEndian.Uint32(msg[pos : pos+4]))
		if secLen < 5 || pos+secLen > len(msg) {
			return param, 0, errors.New("malformed GRIB2 section")
		}
		sec := msg[pos : pos+secLen]

		switch sec[4] {
		case 4: // product definition
			if secLen < 11 {
				return param, 0, errors.New("short product definition section")
			}
			template := binary.BigEndian.Uint16(sec[7:9])
			if template != 0 {
				return param, 0, fmt.Errorf("unsupported product template 4.%d", template)
			}
			param.category = sec[9]
			param.number = sec[10]
			haveProduct = true
		case 5: // data representation
			if secLen < 21 {
				return param, 0, errors.New("short data representation section")
			}
			numPoints = int(binary.BigEndian.Uint32(sec[5:9]))
			template := binary.BigEndian.Uint16(sec[9:11])
			if template != 0 {
				return param, 0, fmt.Errorf("unsupported packing template 5.%d", template)
			}
			refValue = float64(math.Float32frombits(binary.BigEndian.Uint32(sec[11:15])))
			binScale = signMagnitude16(binary.BigEndian.Uint16(sec[15:17]))
			decScale = signMagnitude16(binary.BigEndian.Uint16(sec[17:19]))
			bitsPerVal = int(sec[19])
			havePacking = true
		case 6: // bitmap
			if secLen >= 6 && sec[5] == 0 {
				bitmap = sec[6:]
			}
		case 7: // data
			packed = sec[5:]
		}

		pos += secLen
	}

	if !haveProduct || !havePacking || numPoints == 0 {
		return param, 0, errors.New("incomplete GRIB2 message")
	}

	scale := math.Pow(2, float64(binScale)) / math.Pow(10, float64(decScale))
	ref := refValue / math.Pow(10, float64(decScale))

	// A zero bit width means every point equals the reference value.
	if bitsPerVal == 0 {
		return param, ref, nil
	}
	if packed == nil {
		return param, 0, errors.New("missing GRIB2 data section")
	}

	defined := numPoints
	if bitmap != nil {
		defined = countSetBits(bitmap, numPoints)
		if defined == 0 {
			return param, 0, errors.New("bitmap masks every point")
		}
	}

	var sum float64
	count := 0
	reader := bitReader{data: packed}
	for i := 0; i < defined; i++ {
		raw, err := reader.read(bitsPerVal)
		if err != nil {
			return param, 0, err
		}
		sum += ref + float64(raw)*scale
		count++
	}
	if count == 0 {
		return param, 0, errors.New("empty GRIB2 field")
	}
	return param, sum / float64(count), nil
}

// signMagnitude16 decodes GRIB2 signed integers, which use a sign bit rather
// than two's complement.
func signMagnitude16(v uint16) int {
	if v&0x8000 != 0 {
		return -int(v & 0x7fff)
	}
	return int(v)
}

func countSetBits(bitmap []byte, limit int) int {
	count := 0
	for i := 0; i < limit && i/8 < len(bitmap); i++ {
		if bitmap[i/8]&(1<<(7-uint(i%8))) != 0 {
			count++
		}
	}
	return count
}

type bitReader struct {
	data []byte
	pos  int // bit position
}

func (r *bitReader) read(bits int) (uint64, error) {
	if bits <= 0 || bits > 32 {
		return 0, fmt.Errorf("unsupported bit width %d", bits)
	}
	var v uint64
	for i := 0; i < bits; i++ {
		byteIdx := r.pos / 8
		if byteIdx >= len(r.data) {
			return 0, errors.New("GRIB2 data section truncated")
		}
		bit := (r.data[byteIdx] >> (7 - uint(r.pos%8))) & 1
		v = v<<1 | uint64(bit)
		r.pos++
	}
	return v, nil
}
