// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/repochat/internal/config"
	"github.com/jeranaias/repochat/internal/keystore"
	"github.com/jeranaias/repochat/internal/provider"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitConfig  = 2
)

// DisplayError prints err with a fix-it hint where one is known.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("[Error]"), err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(w, "%s %s\n", DimStyle.Render("  hint:"), hint)
	}
}

func errorHint(err error) string {
	var cerr *provider.ConfigurationError
	if errors.As(err, &cerr) {
		switch cerr.Field {
		case "api_key":
			return "store the key with: repochat secrets set " + keystore.KeyProviderAPIKey + " <key>"
		case "kind":
			return "choose a provider with: repochat config set provider.kind echo"
		default:
			return "check provider." + cerr.Field + " with: repochat config show"
		}
	}

	var verrs config.ValidateErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "fix the value with: repochat config set " + verrs[0].Field + " <value>"
	}

	if errors.Is(err, keystore.ErrInvalidKey) {
		return "keys look like " + keystore.KeyRepositoryToken
	}
	return ""
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		cerr  *provider.ConfigurationError
		verrs config.ValidateErrors
	)
	if errors.As(err, &cerr) || errors.As(err, &verrs) {
		return ExitConfig
	}
	return ExitError
}
