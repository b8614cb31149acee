package tts

import (
	"bytes"

	"github.com/braheezy/shine-mp3/pkg/mp3"
)

// pcmToMP3 encodes 16-bit signed PCM samples to an in-memory MP3 byte
// slice. The shine encoder consumes whole 1152-sample granules, so the
// tail block is zero-padded on flush.
func pcmToMP3(pcm []int16, sampleRate, channels int) []byte {
	var out bytes.Buffer
	encoder := mp3.NewEncoder(sampleRate, channels)

	blockSize := 1152 * channels
	buffer := make([]int16, 0, blockSize*4)

	flush := func(data []int16) {
		if len(data) == 0 {
			return
		}
		encoder.Write(&out, data)
	}

	for _, s := range pcm {
		buffer = append(buffer, s)
		if len(buffer) >= blockSize*4 {
			flush(buffer)
			buffer = buffer[:0]
		}
	}

	if len(buffer) > 0 {
		for len(buffer)%blockSize != 0 {
			buffer = append(buffer, 0)
		}
		flush(buffer)
	}

	return out.Bytes()
}
