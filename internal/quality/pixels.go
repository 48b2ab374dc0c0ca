package quality

import (
	"image"
	"image/color"
	"math"
)

// plane is a grayscale intensity buffer on the 0-255 scale.
type plane struct {
	w, h int
	pix  []float64
}

func grayscale(img image.Image) plane {
	b := img.Bounds()
	p := plane{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < p.h; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+p.w]
			for x, v := range row {
				p.pix[y*p.w+x] = float64(v)
			}
		}
		return p
	}

	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			p.pix[y*p.w+x] = float64(c.Y)
		}
	}
	return p
}

// at reads a pixel, mirroring out-of-range coordinates about the edge
// without repeating the edge pixel.
func (p plane) at(x, y int) float64 {
	return p.pix[reflect101(y, p.h)*p.w+reflect101(x, p.w)]
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// laplacianVariance is the variance of the 4-neighbour Laplacian response.
func laplacianVariance(p plane) float64 {
	resp := make([]float64, 0, len(p.pix))
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			resp = append(resp, p.at(x, y-1)+p.at(x, y+1)+p.at(x-1, y)+p.at(x+1, y)-4*p.at(x, y))
		}
	}
	_, std := meanStd(resp)
	return std * std
}

// noiseVariance is the mean squared deviation of each pixel from its 5x5
// box-filtered neighbourhood.
func noiseVariance(p plane) float64 {
	const r = 2
	var sum float64
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var local float64
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					local += p.at(x+dx, y+dy)
				}
			}
			d := p.pix[y*p.w+x] - local/25
			sum += d * d
		}
	}
	return sum / float64(len(p.pix))
}
