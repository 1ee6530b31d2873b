// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package authflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func TestStore(t *testing.T) {
	store := NewStoreAt(filepath.Join(t.TempDir(), "credentials.json"))

	t.Run("missing credential", func(t *testing.T) {
		g := NewWithT(t)

		_, err := store.Get("github.com", "client-a")
		g.Expect(errors.Is(err, ErrMissingCredentials)).To(BeTrue())
	})

	t.Run("set and get", func(t *testing.T) {
		g := NewWithT(t)

		g.Expect(store.Set("github.com", "client-a", "gho_one")).To(Succeed())
		g.Expect(store.Set("github.com", "client-b", "gho_two")).To(Succeed())

		token, err := store.Get("github.com", "client-a")
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(token).To(Equal("gho_one"))

		token, err = store.Get("github.com", "client-b")
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(token).To(Equal("gho_two"))
	})

	t.Run("replaces existing credential", func(t *testing.T) {
		g := NewWithT(t)

		g.Expect(store.Set("github.com", "client-a", "gho_rotated")).To(Succeed())

		token, err := store.Get("github.com", "client-a")
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(token).To(Equal("gho_rotated"))
	})

	t.Run("writes with restricted permissions", func(t *testing.T) {
		g := NewWithT(t)

		info, err := os.Stat(store.path)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(info.Mode().Perm()).To(Equal(os.FileMode(0600)))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		g := NewWithT(t)

		g.Expect(store.Delete("github.com", "client-a")).To(Succeed())
		g.Expect(store.Delete("github.com", "client-a")).To(Succeed())

		_, err := store.Get("github.com", "client-a")
		g.Expect(errors.Is(err, ErrMissingCredentials)).To(BeTrue())

		// Other credentials survive.
		token, err := store.Get("github.com", "client-b")
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(token).To(Equal("gho_two"))
	})
}

func TestNamespace(t *testing.T) {
	g := NewWithT(t)

	t.Setenv(NamespaceEnvVar, "")
	g.Expect(Namespace()).To(Equal("sponsorkit"))

	t.Setenv(NamespaceEnvVar, "acme-devtools")
	g.Expect(Namespace()).To(Equal("acme-devtools"))
}
