// ledfloor — демон светодиодного пола: шины плиток, нумерация плат,
// отрисовка и опрос датчиков-кнопок.
//
// Использование:
//
//	ledfloor run -c ledfloor.yaml    — запуск (по SIGINT/SIGTERM плиты гасятся)
//	ledfloor reset --wait 2s         — сбросить адреса и перенумеровать платы
//	ledfloor off                     — погасить все плиты
//	ledfloor ports                   — список последовательных портов
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
