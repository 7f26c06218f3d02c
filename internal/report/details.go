package report

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Details is the decoded view of a report payload.
//
// Every field is optional: the payload is owned by the form, and fields the
// form omits stay nil. Unknown fields are ignored here but remain in the raw
// payload.
type Details struct {
	Kecamatan    string `json:"kecamatan"`
	Desa         string `json:"desa"`
	Dusun        string `json:"dusun,omitempty"`
	RT           string `json:"rt,omitempty"`
	RW           string `json:"rw,omitempty"`
	Jalan        string `json:"jalan,omitempty"`
	JenisBencana string `json:"jenis_bencana"`

	KK               *int64 `json:"kk,omitempty"`
	Jiwa             *int64 `json:"jiwa,omitempty"`
	Meninggal        *int64 `json:"meninggal,omitempty"`
	Hilang           *int64 `json:"hilang,omitempty"`
	LukaBerat        *int64 `json:"luka_berat,omitempty"`
	LukaRingan       *int64 `json:"luka_ringan,omitempty"`
	Pengungsi        *int64 `json:"pengungsi,omitempty"`
	RumahRB          *int64 `json:"rumah_rb,omitempty"`
	RumahRS          *int64 `json:"rumah_rs,omitempty"`
	RumahRR          *int64 `json:"rumah_rr,omitempty"`
	Jembatan         *int64 `json:"jembatan,omitempty"`
	FasilitasLainnya *int64 `json:"fasilitas_lainnya,omitempty"`

	Kondisi    string `json:"kondisi,omitempty"`
	Keterangan string `json:"keterangan,omitempty"`

	Lat Coordinate `json:"lat,omitempty"`
	Lng Coordinate `json:"lng,omitempty"`

	Photos []string `json:"photos,omitempty"`
}

// Coordinate is a latitude or longitude as written by the form. It accepts
// a JSON number, a fixed-point string ("-0.070000"), an empty string or
// null, and keeps the literal text.
type Coordinate string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Coordinate(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("coordinate: %w", err)
		}
		*c = Coordinate(n.String())
	}
	return nil
}

// Facets are the payload fields the store indexes.
type Facets struct {
	Kecamatan    string
	Desa         string
	JenisBencana string
}

// DecodeDetails parses a payload into Details.
// An empty payload decodes to zero Details.
func DecodeDetails(payload json.RawMessage) (Details, error) {
	var d Details
	if len(bytes.TrimSpace(payload)) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(payload, &d); err != nil {
		return Details{}, fmt.Errorf("decode payload: %w", err)
	}
	return d, nil
}

// ExtractFacets returns the indexed fields of a payload.
func ExtractFacets(payload json.RawMessage) (Facets, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return Facets{}, nil
	}
	var f struct {
		Kecamatan    string `json:"kecamatan"`
		Desa         string `json:"desa"`
		JenisBencana string `json:"jenis_bencana"`
	}
	if err := json.Unmarshal(payload, &f); err != nil {
		return Facets{}, fmt.Errorf("extract facets: %w", err)
	}
	return Facets{Kecamatan: f.Kecamatan, Desa: f.Desa, JenisBencana: f.JenisBencana}, nil
}

// Count returns the value of an optional count, or zero.
func Count(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
