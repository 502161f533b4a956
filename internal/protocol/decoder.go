package protocol

import "github.com/rs/zerolog"

// Record — сырой ответ платы: адрес (если был), код и накопленные данные
type Record struct {
	Address    byte
	HasAddress bool
	Code       Code
	Data       []byte
}

func (r Record) empty() bool {
	return !r.HasAddress && len(r.Data) == 0
}

// Decoder — автомат разбора потока с шины.
//
// Всё между '<' и следующим '>' — эхо собственной передачи мастера и
// отбрасывается целиком. Вне эха байт [128,254] начинает запись (адрес),
// код ответа платы завершает её, прочие байты копятся в Data.
// Decoder не потокобезопасен: им владеет горутина приёма.
type Decoder struct {
	log     zerolog.Logger
	echo    bool
	cur     Record
	desyncs int
}

// NewDecoder создаёт декодер; ошибки рассинхронизации пишутся в log
func NewDecoder(log zerolog.Logger) *Decoder {
	return &Decoder{log: log}
}

// Feed обрабатывает один байт. ok == true, если байт завершил запись.
func (d *Decoder) Feed(c byte) (rec Record, ok bool) {
	if c == FrameStart {
		d.echo = true
	}
	if d.echo {
		if c == FrameEnd {
			d.echo = false
		}
		return Record{}, false
	}

	switch {
	case c >= ResponseAddressMin && c <= ResponseAddressMax:
		if !d.cur.empty() {
			d.desyncs++
			d.log.Error().
				Bool("has_address", d.cur.HasAddress).
				Uint8("address", d.cur.Address).
				Str("data", string(d.cur.Data)).
				Msg("incomplete data from bus, record dropped")
		}
		d.cur = Record{Address: c, HasAddress: true}
	case IsResponseCode(c):
		rec = d.cur
		rec.Code = Code(c)
		d.cur = Record{}
		return rec, true
	default:
		d.cur.Data = append(d.cur.Data, c)
	}
	return Record{}, false
}

// Decode прогоняет буфер через Feed и возвращает завершённые записи
func (d *Decoder) Decode(p []byte) []Record {
	var out []Record
	for _, c := range p {
		if rec, ok := d.Feed(c); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Desyncs — число записей, потерянных из-за пропущенного терминатора
func (d *Decoder) Desyncs() int {
	return d.desyncs
}
