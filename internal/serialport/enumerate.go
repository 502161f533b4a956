package serialport

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

const usbPrefix = "usb:"

var ErrNoSuchDevice = errors.New("no matching USB serial device")

// PortInfo — последовательный порт системы
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// List перечисляет последовательные порты
func List() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate ports: %w", err)
	}
	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortInfo{
			Name:    p.Name,
			IsUSB:   p.IsUSB,
			VID:     p.VID,
			PID:     p.PID,
			Serial:  p.SerialNumber,
			Product: p.Product,
		})
	}
	return out, nil
}

// Resolve превращает "usb:VID:PID[:SERIAL]" в путь устройства; прочие имена
// возвращаются как есть. Путь USB-моста меняется между загрузками, VID:PID нет.
func Resolve(device string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(device), usbPrefix) {
		return device, nil
	}
	ports, err := List()
	if err != nil {
		return "", err
	}
	return match(device, ports)
}

func match(device string, ports []PortInfo) (string, error) {
	parts := strings.Split(device[len(usbPrefix):], ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%q: want usb:VID:PID[:SERIAL]", device)
	}
	for _, p := range ports {
		if !p.IsUSB || !strings.EqualFold(p.VID, parts[0]) || !strings.EqualFold(p.PID, parts[1]) {
			continue
		}
		if len(parts) == 3 && p.Serial != parts[2] {
			continue
		}
		return p.Name, nil
	}
	return "", fmt.Errorf("%s: %w", device, ErrNoSuchDevice)
}
