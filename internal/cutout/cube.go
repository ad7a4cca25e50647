package cutout

import "fmt"

// Cube is an epoch x row x column pixel stack stored row-major.
type Cube struct {
	Epochs int
	Rows   int
	Cols   int
	Data   []float32
}

// NewCube allocates a zeroed cube.
func NewCube(epochs, rows, cols int) *Cube {
	return &Cube{
		Epochs: epochs,
		Rows:   rows,
		Cols:   cols,
		Data:   make([]float32, epochs*rows*cols),
	}
}

// Validate checks that the dimensions agree with the backing slice.
func (c *Cube) Validate() error {
	if c == nil {
		return fmt.Errorf("nil cube")
	}
	if c.Epochs < 0 || c.Rows < 0 || c.Cols < 0 {
		return fmt.Errorf("negative cube dimensions %dx%dx%d", c.Epochs, c.Rows, c.Cols)
	}
	if len(c.Data) != c.Epochs*c.Rows*c.Cols {
		return fmt.Errorf("cube data has %d values, dimensions %dx%dx%d need %d",
			len(c.Data), c.Epochs, c.Rows, c.Cols, c.Epochs*c.Rows*c.Cols)
	}
	return nil
}

func (c *Cube) offset(epoch, row, col int) int {
	return (epoch*c.Rows+row)*c.Cols + col
}

func (c *Cube) At(epoch, row, col int) float32 {
	return c.Data[c.offset(epoch, row, col)]
}

func (c *Cube) Set(epoch, row, col int, v float32) {
	c.Data[c.offset(epoch, row, col)] = v
}

// Frame returns the row-major pixels of one epoch. The slice aliases the cube.
func (c *Cube) Frame(epoch int) []float32 {
	n := c.Rows * c.Cols
	return c.Data[epoch*n : (epoch+1)*n]
}
