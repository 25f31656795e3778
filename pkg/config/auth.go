// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Core.
//
// Zaparoo Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Core.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"
)

// CredentialEntry holds a single provider's authentication material.
// Providers populate whichever subset of fields they need: ScreenScraper
// uses DevID/DevPassword/Username/Password, SteamGridDB and IGDB use
// APIKey (IGDB additionally uses ClientSecret as a client secret).
type CredentialEntry struct {
	Username     string `toml:"username,omitempty"`
	Password     string `toml:"password,omitempty"`
	DevID        string `toml:"devid,omitempty"`
	DevPassword  string `toml:"devpassword,omitempty"`
	APIKey       string `toml:"api_key,omitempty"`
	ClientID     string `toml:"client_id,omitempty"`
	ClientSecret string `toml:"client_secret,omitempty"`
}

// credsFile is the on-disk shape of credentials.toml: one table per
// provider name, e.g. [creds.screenscraper] / [creds.steamgriddb].
type credsFile struct {
	Creds map[string]CredentialEntry `toml:"creds"`
}

// authCreds is the process-wide credential store (§12.2), grounded on the
// original implementation's separate-credentials-file design. Unlike the
// original's reversed-string base64 "obfuscation" (which provided no real
// confidentiality), this stores credentials as plain TOML: secret handling
// proper is out of scope per spec §1.
var authCreds atomic.Value

// LoadAuthFromData parses a credentials.toml document into a provider-keyed map.
func LoadAuthFromData(data []byte) map[string]CredentialEntry {
	var f credsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return map[string]CredentialEntry{}
	}
	if f.Creds == nil {
		return map[string]CredentialEntry{}
	}
	return f.Creds
}

// GetCredentials returns the stored credentials for a provider, and whether
// any were found.
func GetCredentials(provider string) (CredentialEntry, bool) {
	val := authCreds.Load()
	if val == nil {
		return CredentialEntry{}, false
	}
	creds, ok := val.(map[string]CredentialEntry)
	if !ok {
		return CredentialEntry{}, false
	}
	c, ok := creds[provider]
	return c, ok
}

// SetCredentials stores credentials for a provider in the in-memory store.
// Callers that need persistence must marshal the full map back to the
// credentials file themselves (mirroring Instance.Save's atomic rename).
func SetCredentials(provider string, entry CredentialEntry) {
	existing := map[string]CredentialEntry{}
	if val := authCreds.Load(); val != nil {
		if m, ok := val.(map[string]CredentialEntry); ok {
			for k, v := range m {
				existing[k] = v
			}
		}
	}
	existing[provider] = entry
	authCreds.Store(existing)
}

// SetCredentialsForTesting resets the credential store to exactly the given map.
func SetCredentialsForTesting(creds map[string]CredentialEntry) {
	authCreds.Store(creds)
}
