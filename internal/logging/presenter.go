// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"

	apperrors "scrapbook/cli/internal/errors"

	"github.com/pterm/pterm"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Mask(err.Error())
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// ReportError prints err to the terminal unless it records a declined confirmation,
// which is an expected user choice and stays silent. It reports whether anything was shown.
func ReportError(context string, err error) bool {
	if err == nil || apperrors.IsUserCancelled(err) {
		return false
	}
	switch apperrors.KindOf(err) {
	case apperrors.NotConnected:
		pterm.Warning.Println(PresentError(context, err))
		pterm.Println("   Run 'scrapbook connect <account>/<database>' first.")
	default:
		pterm.Error.Println(PresentError(context, err))
	}
	return true
}
