package encoder

import "time"

const (
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
	// Format is the file extension the upload is named with.
	Format() string
}

// EncodeAll feeds samples to enc in BlockSize blocks, closes it and records
// the time spent.
func EncodeAll(enc Encoder, samples []int16) error {
	start := time.Now()
	defer func() { enc.AddEncodeTime(time.Since(start)) }()

	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return err
		}
	}
	return enc.Close()
}
