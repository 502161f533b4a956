package protocol

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{"reset broadcast", ResetID{To: BroadcastAddress}, []byte{'<', 0xFF, 'R', 'S', 'T', 0x01, '>'}},
		{"offer id", OfferID{ID: 0x85}, []byte{'<', 0xFF, 0x85, 0x03, '>'}},
		{"ping", Ping{To: 0x80}, []byte{'<', 0x80, 0x04, '>'}},
		{"seq 65", OfferSequenceNumber{To: 0x81, Seq: 65}, []byte{'<', 0x81, 64 + 1, 64 + 1, 0x06, '>'}},
		{"led", LEDData{To: 0x90, Data: []byte{0x40, 0x7F}}, []byte{'<', 0x90, 0x40, 0x7F, 0x10, '>'}},
		{"sensor", RequestSensor{To: BroadcastAddress}, []byte{'<', 0xFF, 0x11, '>'}},
		{"info", RequestInfo{To: 0x82}, []byte{'<', 0x82, 0x1D, '>'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.cmd)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestParseFrames(t *testing.T) {
	var stream []byte
	stream = AppendFrame(stream, OfferID{ID: 0x80})
	stream = AppendFrame(stream, Ping{To: BroadcastAddress})
	frames, err := ParseFrames(stream)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Code != CodeOfferID || !bytes.Equal(frames[0].Payload, []byte{0x80}) {
		t.Errorf("frame 0 = %+v", frames[0])
	}
	if frames[1].Code != CodePingFromMaster || frames[1].Address != BroadcastAddress {
		t.Errorf("frame 1 = %+v", frames[1])
	}

	if _, err := ParseFrames([]byte{'<', 0x80, 0x04}); err == nil {
		t.Error("expected error for unterminated frame")
	}
}

func TestDecoder_OwnFramesProduceNoRecords(t *testing.T) {
	cmds := []Command{
		ResetID{To: BroadcastAddress},
		OfferID{ID: 0x80},
		Ping{To: BroadcastAddress},
		OfferSequenceNumber{To: 0x80, Seq: 4095},
		LEDData{To: 0x80, Data: EncodeLEDs(make([]uint8, 300), 10)},
		RequestSensor{To: BroadcastAddress},
		RequestInfo{To: 0x80},
	}
	d := NewDecoder(zerolog.Nop())
	for _, c := range cmds {
		if recs := d.Decode(Encode(c)); len(recs) != 0 {
			t.Errorf("%v: echo produced %d records: %+v", c.Code(), len(recs), recs)
		}
	}
	if d.Desyncs() != 0 {
		t.Errorf("desyncs = %d, want 0", d.Desyncs())
	}
}

func TestDecoder_EchoImmunity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDecoder(zerolog.Nop())
	for i := 0; i < 500; i++ {
		s := make([]byte, rng.Intn(64))
		for j := range s {
			for {
				s[j] = byte(rng.Intn(256))
				if s[j] != FrameEnd {
					break
				}
			}
		}
		wrapped := append(append([]byte{FrameStart}, s...), FrameEnd)
		if recs := d.Decode(wrapped); len(recs) != 0 {
			t.Fatalf("wrapped % x decoded into %+v", s, recs)
		}
	}
}

func TestDecoder_Responses(t *testing.T) {
	d := NewDecoder(zerolog.Nop())
	var stream []byte
	stream = append(stream, Encode(RequestSensor{To: BroadcastAddress})...)
	stream = append(stream, 0x80, '5', '1', '2', byte(CodeSensorData))
	stream = append(stream, Encode(Ping{To: BroadcastAddress})...)
	stream = append(stream, 0x81, byte(CodePong))
	stream = append(stream, byte(CodeRequestID))

	recs := d.Decode(stream)
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3: %+v", len(recs), recs)
	}
	if recs[0].Address != 0x80 || recs[0].Code != CodeSensorData || string(recs[0].Data) != "512" {
		t.Errorf("record 0 = %+v", recs[0])
	}
	if recs[1].Address != 0x81 || recs[1].Code != CodePong {
		t.Errorf("record 1 = %+v", recs[1])
	}
	if recs[2].HasAddress || recs[2].Code != CodeRequestID {
		t.Errorf("record 2 = %+v", recs[2])
	}
}

func TestDecoder_EchoInsideRecord(t *testing.T) {
	d := NewDecoder(zerolog.Nop())
	stream := []byte{0x80, '1'}
	stream = append(stream, Encode(Ping{To: 0x85})...)
	stream = append(stream, '2', byte(CodeSensorData))
	recs := d.Decode(stream)
	if len(recs) != 1 || string(recs[0].Data) != "12" {
		t.Fatalf("got %+v", recs)
	}
}

func TestDecoder_DroppedTerminator(t *testing.T) {
	d := NewDecoder(zerolog.Nop())
	recs := d.Decode([]byte{0x80, '9', 0x81, byte(CodePong)})
	if len(recs) != 1 || recs[0].Address != 0x81 {
		t.Fatalf("got %+v", recs)
	}
	if d.Desyncs() != 1 {
		t.Errorf("desyncs = %d, want 1", d.Desyncs())
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		want    Message
		wantErr error
	}{
		{"request id", Record{Code: CodeRequestID}, RequestID{}, nil},
		{"pong", Record{Address: 0x80, HasAddress: true, Code: CodePong}, Pong{From: 0x80}, nil},
		{"pong no address", Record{Code: CodePong}, nil, ErrNoAddress},
		{"sensor", Record{Address: 0x81, HasAddress: true, Code: CodeSensorData, Data: []byte("1023")}, SensorData{From: 0x81, Value: 1023}, nil},
		{"sensor garbage", Record{Address: 0x81, HasAddress: true, Code: CodeSensorData, Data: []byte("1x")}, nil, ErrBadSensorData},
		{"info", Record{Address: 0x82, HasAddress: true, Code: CodeInfo, Data: []byte("v2")}, Info{From: 0x82, Text: "v2"}, nil},
		{"debug", Record{Address: 0x82, HasAddress: true, Code: CodeDebug, Data: []byte("hi")}, Debug{From: 0x82, Text: "hi"}, nil},
		{"unknown", Record{Code: CodeResetID}, nil, ErrUnknownCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.rec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %#v want %#v", got, tt.want)
			}
		})
	}
}
