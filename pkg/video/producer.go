package video

import (
	"context"
	"time"

	"gocv.io/x/gocv"

	"floorwatch/internal/log"
)

// Producer drains a Source into a Buffer on its own goroutine, stamping each
// frame with its capture time. It runs at the source's pace; consumers that
// cannot keep up lose frames to the buffer's overwrite policy, never the
// producer.
type Producer struct {
	name   string
	src    Source
	buf    *Buffer
	cancel context.CancelFunc
	done   chan struct{}
}

// NewProducer creates a producer feeding buf from src.
func NewProducer(name string, src Source, buf *Buffer) *Producer {
	return &Producer{name: name, src: src, buf: buf}
}

// Start begins capturing on a new goroutine. The producer stops on its own
// when the source is exhausted, or when Stop is called.
func (p *Producer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.capture(ctx)
}

// Stop terminates capture and waits for the goroutine to exit.
func (p *Producer) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Done returns a channel closed when the capture goroutine has exited,
// whether by Stop or source exhaustion.
func (p *Producer) Done() <-chan struct{} {
	return p.done
}

func (p *Producer) capture(ctx context.Context) {
	defer close(p.done)

	mat := gocv.NewMat()
	defer mat.Close()

	log.Info("producer running", "producer", p.name)

	for {
		select {
		case <-ctx.Done():
			log.Info("producer stopped", "producer", p.name, "frames", p.buf.FrameCount())
			return
		default:
		}

		if !p.src.Read(&mat) {
			log.Info("producer source exhausted", "producer", p.name, "frames", p.buf.FrameCount())
			return
		}
		if mat.Empty() {
			continue
		}
		p.buf.Write(NewFrame(time.Now(), mat.Clone()))
	}
}
