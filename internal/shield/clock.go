package shield

import "time"

// SlotLength — длительность одного слота логических часов. Слот — монотонная
// единица прогрессии, по ней считается истечение сессий независимо от дрейфа
// настенных часов.
const SlotLength = 400 * time.Millisecond

// Clock — источник времени ядра: настенная метка для скользящего окна
// и монотонный счетчик слотов для истечения capability. Ядро читает время
// только отсюда, что делает окно и экспирацию детерминированными в тестах.
type Clock interface {
	Now() time.Time
	Slot() uint64
}

// SystemClock — боевая реализация. Слот выводится из UnixMilli, поэтому он
// монотонен между рестартами процесса.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Slot() uint64 {
	return uint64(time.Now().UnixMilli()) / uint64(SlotLength.Milliseconds())
}
