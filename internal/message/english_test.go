// ABOUTME: Tests for the English composer templates and predicates
// ABOUTME: Covers enumeration, yes/no interpretation and ordinal parsing

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicbots/courtbot/internal/registration"
)

var testComposer = English{PublicURL: "https://courts.example.gov", Title: "Courtbot"}

func TestEnglish_AskPartyEnumerates(t *testing.T) {
	parties := []registration.Party{{Name: "Alice"}, {Name: "Bob"}}
	msg := testComposer.AskParty("+1555", &registration.Registration{}, parties)

	assert.Contains(t, msg, "1 - Alice")
	assert.Contains(t, msg, "2 - Bob")
	assert.Contains(t, msg, "entering the number shown")
}

func TestEnglish_Reminder(t *testing.T) {
	reg := &registration.Registration{CaseNumber: "CF-2016-77", Name: "Alice"}
	evt := registration.CaseEvent{Date: "2026-09-03", Description: "preliminary hearing"}
	msg := testComposer.Reminder(reg, evt)

	assert.Contains(t, msg, "2026-09-03")
	assert.Contains(t, msg, "preliminary hearing")
	assert.Contains(t, msg, "https://courts.example.gov")
	assert.Contains(t, msg, "Courtbot")
}

func TestEnglish_IsYes(t *testing.T) {
	assert.True(t, testComposer.IsYes("YES"))
	assert.True(t, testComposer.IsYes("  yes "))
	assert.True(t, testComposer.IsYes("Yes"))
	assert.False(t, testComposer.IsYes("YES PLEASE"))
	assert.False(t, testComposer.IsYes("y"))
	assert.False(t, testComposer.IsYes(""))
}

func TestEnglish_IsNo(t *testing.T) {
	assert.True(t, testComposer.IsNo("NO"))
	assert.True(t, testComposer.IsNo(" no "))
	assert.False(t, testComposer.IsNo("nope"))
	assert.False(t, testComposer.IsNo("YES"))
}

func TestEnglish_Ordinal(t *testing.T) {
	n, ok := testComposer.Ordinal(" 2 ")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = testComposer.Ordinal("0")
	assert.False(t, ok)
	_, ok = testComposer.Ordinal("-3")
	assert.False(t, ok)
	_, ok = testComposer.Ordinal("BOB")
	assert.False(t, ok)
}

func TestEnglish_BadMessageRepresentsLastQuestion(t *testing.T) {
	msg := testComposer.BadMessage("xyz", "Would you like reminders? (reply YES or NO)")
	assert.Contains(t, msg, `"xyz"`)
	assert.Contains(t, msg, "reply YES or NO")
}

func TestUnconfigured_Sentinel(t *testing.T) {
	var c Composer = Unconfigured{}
	assert.Equal(t, NoMessage, c.NoCase("CF-1"))
	assert.Equal(t, NoMessage, c.Confirm("+1555", nil))
	assert.False(t, c.IsYes("YES"))
	_, ok := c.Ordinal("1")
	assert.False(t, ok)
}
