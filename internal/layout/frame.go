package layout

// BoardSize — сторона плиты в светодиодах (10x10)
const BoardSize = 10

// Frame — RGB-кадр всего пола, по 3 байта на пиксель, построчно.
// После передачи в шину кадр не изменяют: рендер пишет в новый кадр.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewFrame создаёт чёрный кадр
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]uint8, width*height*3)}
}

// Set задаёт цвет пикселя; координаты вне кадра игнорируются
func (f *Frame) Set(x, y int, r, g, b uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	i := (y*f.Width + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// At возвращает цвет пикселя (чёрный вне кадра)
func (f *Frame) At(x, y int) (r, g, b uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, 0, 0
	}
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// FillRect закрашивает прямоугольник w x h с углом (x, y)
func (f *Frame) FillRect(x, y, w, h int, r, g, b uint8) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			f.Set(xx, yy, r, g, b)
		}
	}
}

// Clone — глубокая копия кадра
func (f *Frame) Clone() *Frame {
	return &Frame{Width: f.Width, Height: f.Height, Pix: append([]uint8(nil), f.Pix...)}
}

// Block копирует участок плиты pos (size x size пикселей, строками).
// Пиксели за пределами кадра — чёрные.
func (f *Frame) Block(pos Position, size int) []uint8 {
	out := make([]uint8, 0, size*size*3)
	x0, y0 := pos.Column*size, pos.Row*size
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			r, g, b := f.At(x, y)
			out = append(out, r, g, b)
		}
	}
	return out
}
