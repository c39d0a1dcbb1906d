package proc

import (
	"context"
	"errors"
	"io"

	"github.com/asticode/go-astiav"
)

const (
	opusSampleRate = 48000
	opusFrameSize  = 960
)

func init() {
	astiav.SetLogLevel(astiav.LogLevelFatal)
}

// AstiavTranscoder decodes any audio container read from an io.Reader and
// re-encodes it as 20ms stereo opus frames.
type AstiavTranscoder struct {
	inputCtx               *astiav.FormatContext
	ioCtx                  *astiav.IOContext
	decoderCtx, encoderCtx *astiav.CodecContext
	audioStreamIndex       int
	packet                 *astiav.Packet
	frame                  *astiav.Frame
	resampleCtx            *astiav.SoftwareResampleContext
	resampleFrame          *astiav.Frame
	fifo                   *astiav.AudioFifo
	onFrame                func([]byte)
	pts                    int64

	// Gain is read for every encoded frame. Nil means unity.
	Gain func() float64
}

func NewAstiavTranscoder() *AstiavTranscoder {
	return &AstiavTranscoder{
		packet:        astiav.AllocPacket(),
		frame:         astiav.AllocFrame(),
		resampleFrame: astiav.AllocFrame(),
	}
}

func (t *AstiavTranscoder) OpenInput(r io.Reader) error {
	t.inputCtx = astiav.AllocFormatContext()
	if t.inputCtx == nil {
		return errors.New("failed to alloc ctx")
	}

	ioCtx, err := astiav.AllocIOContext(16*1024, false, r.Read, func(offset int64, whence int) (int64, error) {
		return 0, errors.New("seek not supported")
	}, nil)
	if err != nil {
		return err
	}
	t.ioCtx = ioCtx
	t.inputCtx.SetPb(ioCtx)
	t.inputCtx.SetFlags(t.inputCtx.Flags().Add(astiav.FormatContextFlagCustomIo))

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("probesize", "10000000", 0)
	_ = opts.Set("analyzeduration", "10000000", 0)

	if err := t.inputCtx.OpenInput("", nil, opts); err != nil {
		return err
	}
	if err := t.inputCtx.FindStreamInfo(nil); err != nil {
		return err
	}
	t.audioStreamIndex = -1
	for _, s := range t.inputCtx.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			t.audioStreamIndex = s.Index()
			break
		}
	}
	if t.audioStreamIndex == -1 {
		return errors.New("no audio")
	}
	return nil
}

func (t *AstiavTranscoder) SetupDecoder() error {
	p := t.inputCtx.Streams()[t.audioStreamIndex].CodecParameters()
	d := astiav.FindDecoder(p.CodecID())
	if d == nil {
		return errors.New("no decoder")
	}
	t.decoderCtx = astiav.AllocCodecContext(d)
	_ = p.ToCodecContext(t.decoderCtx)
	return t.decoderCtx.Open(d, nil)
}

func (t *AstiavTranscoder) SetupEncoder() error {
	e := astiav.FindEncoderByName("libopus")
	if e == nil {
		e = astiav.FindEncoder(astiav.CodecIDOpus)
	}
	if e == nil {
		return errors.New("no encoder")
	}
	t.encoderCtx = astiav.AllocCodecContext(e)
	t.encoderCtx.SetBitRate(128000)
	t.encoderCtx.SetSampleRate(opusSampleRate)
	t.encoderCtx.SetChannelLayout(astiav.ChannelLayoutStereo)
	t.encoderCtx.SetSampleFormat(astiav.SampleFormatS16)
	t.encoderCtx.SetTimeBase(astiav.NewRational(1, opusSampleRate))
	o := astiav.NewDictionary()
	defer o.Free()
	_ = o.Set("vbr", "on", 0)
	_ = o.Set("frame_size", "20", 0)
	if err := t.encoderCtx.Open(e, o); err != nil {
		return err
	}
	// initialised lazily by ConvertFrame from the first decoded frame
	t.resampleCtx = astiav.AllocSoftwareResampleContext()
	if t.resampleCtx == nil {
		return errors.New("failed to allocate resampler")
	}
	return nil
}

// Transcode pumps the input until EOF or ctx ends, calling on with every
// encoded frame and finally with nil.
func (t *AstiavTranscoder) Transcode(ctx context.Context, on func([]byte)) error {
	defer t.packet.Unref()
	t.onFrame = on
	defer t.onFrame(nil)

	t.fifo = astiav.AllocAudioFifo(t.encoderCtx.SampleFormat(), t.encoderCtx.ChannelLayout().Channels(), opusFrameSize*2)
	defer func() {
		t.fifo.Free()
		t.fifo = nil
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := t.inputCtx.ReadFrame(t.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				break
			}
			return err
		}
		if t.packet.StreamIndex() != t.audioStreamIndex {
			t.packet.Unref()
			continue
		}
		if err := t.decoderCtx.SendPacket(t.packet); err != nil {
			t.packet.Unref()
			return err
		}
		t.packet.Unref()
		t.drainDecoder()
		t.drainFifo(opusFrameSize)
	}

	_ = t.decoderCtx.SendPacket(nil)
	t.drainDecoder()
	t.drainFifo(1)

	_ = t.encoderCtx.SendFrame(nil)
	t.receivePackets()
	return nil
}

func (t *AstiavTranscoder) drainDecoder() {
	for t.decoderCtx.ReceiveFrame(t.frame) == nil {
		t.resampleFrame.Unref()
		t.prepareResampleFrame()
		nb := int(astiav.RescaleQ(int64(t.frame.NbSamples()), astiav.NewRational(1, t.frame.SampleRate()), astiav.NewRational(1, opusSampleRate)))
		if nb > 0 {
			t.resampleFrame.SetNbSamples(nb)
			_ = t.resampleFrame.AllocBuffer(0)
			if t.resampleCtx.ConvertFrame(t.frame, t.resampleFrame) == nil {
				_, _ = t.fifo.Write(t.resampleFrame)
			}
		}
		t.frame.Unref()
	}
}

// drainFifo encodes buffered samples while at least atLeast are available.
func (t *AstiavTranscoder) drainFifo(atLeast int) {
	for t.fifo.Size() >= atLeast && t.fifo.Size() > 0 {
		sz := opusFrameSize
		if t.fifo.Size() < sz {
			sz = t.fifo.Size()
		}
		t.resampleFrame.Unref()
		t.prepareResampleFrame()
		t.resampleFrame.SetNbSamples(sz)
		_ = t.resampleFrame.AllocBuffer(0)
		_, _ = t.fifo.Read(t.resampleFrame)
		t.applyGain(t.resampleFrame)
		t.resampleFrame.SetPts(t.pts)
		t.pts += int64(sz)
		_ = t.encodeAndWrite(t.resampleFrame)
	}
}

func (t *AstiavTranscoder) prepareResampleFrame() {
	t.resampleFrame.SetChannelLayout(t.encoderCtx.ChannelLayout())
	t.resampleFrame.SetSampleFormat(t.encoderCtx.SampleFormat())
	t.resampleFrame.SetSampleRate(t.encoderCtx.SampleRate())
}

func (t *AstiavTranscoder) applyGain(f *astiav.Frame) {
	if t.Gain == nil {
		return
	}
	g := t.Gain()
	if g == 1 {
		return
	}
	b, err := f.Data().Bytes(1)
	if err != nil {
		return
	}
	scaleS16LE(b, g)
	_ = f.Data().SetBytes(b, 1)
}

func (t *AstiavTranscoder) encodeAndWrite(f *astiav.Frame) error {
	if err := t.encoderCtx.SendFrame(f); err != nil {
		return err
	}
	t.receivePackets()
	return nil
}

func (t *AstiavTranscoder) receivePackets() {
	for {
		p := astiav.AllocPacket()
		if t.encoderCtx.ReceivePacket(p) != nil {
			p.Free()
			return
		}
		d := p.Data()
		fd := make([]byte, len(d))
		copy(fd, d)
		t.onFrame(fd)
		p.Free()
	}
}

func (t *AstiavTranscoder) Close() {
	if t.resampleCtx != nil {
		t.resampleCtx.Free()
	}
	if t.resampleFrame != nil {
		t.resampleFrame.Free()
	}
	if t.packet != nil {
		t.packet.Free()
	}
	if t.frame != nil {
		t.frame.Free()
	}
	if t.decoderCtx != nil {
		t.decoderCtx.Free()
	}
	if t.encoderCtx != nil {
		t.encoderCtx.Free()
	}
	if t.inputCtx != nil {
		t.inputCtx.CloseInput()
		t.inputCtx.Free()
	}
	if t.ioCtx != nil {
		t.ioCtx.Free()
	}
}
