package main

import (
	"sync"

	"github.com/eiannone/keyboard"
)

// Single buffered channel and one reader goroutine; opening the keyboard
// more than once breaks terminal state on some platforms.
var (
	keyCh     chan rune
	startOnce sync.Once
)

// startKeyEvents returns a channel emitting single-key runes read without
// Enter. If the keyboard cannot be opened (no TTY, piped output) the
// returned channel simply never emits and the logger runs without
// interactive controls.
func startKeyEvents() chan rune {
	startOnce.Do(func() {
		keyCh = make(chan rune, 64)
		if err := keyboard.Open(); err != nil {
			return
		}
		go func() {
			defer keyboard.Close()
			for {
				char, key, err := keyboard.GetKey()
				if err != nil {
					close(keyCh)
					return
				}
				if key == keyboard.KeyEsc {
					char = 27
				} else if key == keyboard.KeyCtrlC {
					char = 'q'
				} else if key != 0 {
					continue
				}
				// Drop keys nobody is consuming rather than block the
				// reader goroutine.
				select {
				case keyCh <- char:
				default:
				}
			}
		}()
	})
	return keyCh
}
