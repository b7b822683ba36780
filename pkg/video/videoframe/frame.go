package videoframe

type Dimensions struct {
	W, H int
}

func (d Dimensions) Valid() bool { return d.W > 0 && d.H > 0 }

type NoCloser interface {
	DataRef() interface{}
	Dimensions() Dimensions
}

type Frame interface {
	NoCloser
	Close()
}

// CloseAll closes every non nil frame given.
func CloseAll(frames ...Frame) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}
