// internal/game/constants.go
package game

import "time"

const (
	// MaxPlayers is the room capacity.
	MaxPlayers = 8

	// RoomCodeLength is the length of generated room codes.
	RoomCodeLength = 5

	// RoomCodeAlphabet excludes glyphs that read ambiguously (I, O, 0, 1).
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// ChatMessageLimit caps relayed chat messages, in characters.
	ChatMessageLimit = 200
)

// Phase timings. Rooms copy these at creation so tests can shorten them.
const (
	DrawAnimationDuration = 2000 * time.Millisecond
	LetterRevealDuration  = 1500 * time.Millisecond
	StopCountdownDuration = 5 * time.Second
	EndGameCooldown       = 10 * time.Second
)

// Alphabet holds the 33 letters of the Georgian alphabet in canonical order.
// Round letters are drawn from here.
var Alphabet = []string{
	"ა", "ბ", "გ", "დ", "ე", "ვ", "ზ", "თ", "ი", "კ", "ლ",
	"მ", "ნ", "ო", "პ", "ჟ", "რ", "ს", "ტ", "უ", "ფ", "ქ",
	"ღ", "ყ", "შ", "ჩ", "ც", "ძ", "წ", "ჭ", "ხ", "ჯ", "ჰ",
}

// DefaultCategories are the seven categories a new room starts with.
var DefaultCategories = []string{
	"ქალაქი",
	"ქვეყანა",
	"მდინარე",
	"ცხოველი",
	"მცენარე",
	"სახელი",
	"ნივთი",
}

// BonusCategories is the pool the extra round category is drawn from when
// the bonus setting is on.
var BonusCategories = []string{
	"ფილმი",
	"მუსიკოსი",
	"პროფესია",
	"საჭმელი",
	"ბრენდი",
	"სპორტი",
	"ფერი",
	"ცნობილი ადამიანი",
}

// User-facing error strings. These are part of the client compatibility
// surface and must not be reworded.
const (
	ErrRoomNotFound = "ოთახი ვერ მოიძებნა"
	ErrGameStarted  = "თამაში უკვე დაწყებულია"
	ErrRoomFull     = "ოთახი სავსეა (მაქს. 8 მოთამაშე)"
	ErrNotAllReady  = "ყველა მოთამაშე მზად არ არის"
	ErrWaitForStop  = "დაელოდეთ ტაიმერს"
)
