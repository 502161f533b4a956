package protocol

// Маркер старших бит байта LED-данных: 0b01xxxyyy всегда в диапазоне
// 0x40..0x7F и не совпадает ни с адресом, ни с кодом команды.
const ledMarker = 0b01000000

// Каналы урезаются до 3 бит (разрешение ШИМ платы).
const ledShift = 5

// EncodeLEDs кодирует блок пикселей RGB (по 3 байта, строками по rowPixels)
// в payload send_led_data: 3 бита на канал, нечётные строки в обратном
// порядке (змейка, как проложена цепочка светодиодов), два значения на байт.
func EncodeLEDs(block []uint8, rowPixels int) []byte {
	return PackLEDValues(serpentine(block, rowPixels))
}

// serpentine возвращает 3-битные значения каналов в порядке цепочки
func serpentine(block []uint8, rowPixels int) []uint8 {
	if rowPixels <= 0 {
		return nil
	}
	rowBytes := rowPixels * 3
	out := make([]uint8, 0, len(block))
	for row := 0; row*rowBytes < len(block); row++ {
		start := row * rowBytes
		end := start + rowBytes
		if end > len(block) {
			end = len(block)
		}
		line := block[start:end]
		pixels := len(line) / 3
		for i := 0; i < pixels; i++ {
			p := i
			if row%2 == 1 {
				p = pixels - 1 - i
			}
			px := line[p*3 : p*3+3]
			out = append(out, px[0]>>ledShift, px[1]>>ledShift, px[2]>>ledShift)
		}
	}
	return out
}

// PackLEDValues упаковывает значения 0..7 по два в байт: 0b01 + первое<<3 + второе.
// Нечётный хвост уходит отдельным байтом с одним значением. Значения > 7 обрезаются.
func PackLEDValues(values []uint8) []byte {
	out := make([]byte, 0, (len(values)+1)/2)
	for i := 0; i < len(values); i += 2 {
		b := byte(ledMarker) | (values[i]&0b111)<<3
		if i+1 < len(values) {
			b |= values[i+1] & 0b111
		}
		out = append(out, b)
	}
	return out
}
