package lnutil

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	White = color.New(color.FgHiWhite).SprintFunc()
	Green = color.New(color.FgHiGreen).SprintFunc()
	Red   = color.New(color.FgHiRed).SprintFunc()

	Header  = color.New(color.FgHiCyan).SprintFunc()
	Prompt  = color.New(color.FgHiYellow).SprintFunc()
	Address = color.New(color.FgMagenta).SprintFunc()
	Channel = color.New(color.FgYellow).SprintFunc()
	Amount  = color.New(color.FgHiWhite).Add(color.Underline).SprintFunc()
	Faint   = color.New(color.Faint).SprintFunc()
)

func ReqColor(required ...interface{}) string {
	var s string
	for i := 0; i < len(required); i++ {
		s += " <"
		s += White(required[i])
		s += ">"
	}
	return s
}

func OptColor(optional ...interface{}) string {
	var s string
	var tail string
	for i := 0; i < len(optional); i++ {
		s += " [<"
		s += White(optional[i])
		s += ">"
		tail += "]"
	}
	return s + tail
}

// FeeColor prints a fee next to the amount it was charged on, with the
// fee in faint so long route listings stay readable.
func FeeColor(amount, fee int64) string {
	if fee == 0 {
		return Amount(amount)
	}
	return fmt.Sprintf("%s%s", Amount(amount), Faint(fmt.Sprintf("+%d", fee)))
}
