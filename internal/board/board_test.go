package board

import (
	"errors"
	"testing"

	"github.com/shiwa/ledfloor/internal/layout"
	"github.com/shiwa/ledfloor/internal/protocol"
)

func TestBoard_SensorValue(t *testing.T) {
	b := New(0x80, layout.Position{Column: 1, Row: 2}, 0)
	if b.SensorValue() != SensorUnknown {
		t.Errorf("initial sensor = %d, want %d", b.SensorValue(), SensorUnknown)
	}
	if b.IsButtonPressed() {
		t.Error("unknown reading must not count as pressed")
	}

	tests := []struct {
		in      int
		wantErr bool
		want    int
	}{
		{0, false, 0},
		{1023, false, 1023},
		{1024, true, 1023},
		{-5, true, 1023},
		{101, false, 101},
	}
	for _, tt := range tests {
		err := b.SetSensorValue(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetSensorValue(%d) err = %v", tt.in, err)
		}
		if err != nil && !errors.Is(err, ErrSensorRange) {
			t.Errorf("SetSensorValue(%d): want ErrSensorRange, got %v", tt.in, err)
		}
		if b.SensorValue() != tt.want {
			t.Errorf("after SetSensorValue(%d): value = %d, want %d", tt.in, b.SensorValue(), tt.want)
		}
	}
	if !b.IsButtonPressed() {
		t.Error("101 > 100 should be pressed")
	}
	_ = b.SetSensorValue(100)
	if b.IsButtonPressed() {
		t.Error("100 is not above threshold")
	}
}

func TestBoard_LEDCommandSuppressesRepeats(t *testing.T) {
	b := New(0x81, layout.Position{}, 0)
	block := make([]uint8, layout.BoardSize*layout.BoardSize*3)
	block[0] = 0xFF

	cmd, changed := b.LEDCommand(block)
	if !changed {
		t.Fatal("first write must be sent")
	}
	if cmd.To != 0x81 || len(cmd.Data) != 150 {
		t.Errorf("cmd = to %d, %d bytes", cmd.To, len(cmd.Data))
	}

	if _, changed := b.LEDCommand(append([]uint8(nil), block...)); changed {
		t.Error("identical block must be suppressed")
	}

	block[1] = 0x20
	if _, changed := b.LEDCommand(block); !changed {
		t.Error("modified block must be sent")
	}

	b.ForgetDisplayed()
	if _, changed := b.LEDCommand(block); !changed {
		t.Error("block must be sent after ForgetDisplayed")
	}
}

func TestBoard_Commands(t *testing.T) {
	b := New(0x82, layout.Position{}, 70)
	if b.Ping().Address() != 0x82 || b.Reset().Address() != 0x82 || b.SensorRequest().Address() != 0x82 {
		t.Error("targeted commands must address the board")
	}
	seq, err := b.OfferSequenceNumber()
	if err != nil {
		t.Fatal(err)
	}
	got, _ := protocol.DecodeSequenceNumber(seq.Payload()[0], seq.Payload()[1])
	if got != 70 {
		t.Errorf("seq payload decodes to %d", got)
	}
	if Broadcast().Address() != protocol.BroadcastAddress {
		t.Error("broadcast board address")
	}
	if OfferID(0x90).Address() != protocol.BroadcastAddress {
		t.Error("offer_id must go to broadcast")
	}
}
