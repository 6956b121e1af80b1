package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/persist/boltsnap"
	"github.com/hivellm/nexus/session"
	"github.com/hivellm/nexus/store"
)

// openSession loads a session from dataDir's snapshot file, or starts a
// fresh empty graph if the file does not yet exist.
func openSession(dataDir string) (*session.Session, error) {
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		logrus.WithField("path", dataDir).Info("no existing snapshot, starting empty graph")
		return session.New(catalog.New(), store.New()), nil
	}

	cat, st, err := boltsnap.Load(dataDir)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot from %s: %w", dataDir, err)
	}
	logrus.WithFields(logrus.Fields{
		"path":          dataDir,
		"nodes":         st.NodeCount(),
		"relationships": st.RelationshipCount(),
	}).Info("loaded snapshot")
	return session.New(cat, st), nil
}

// saveSession persists the session's current state back to dataDir.
func saveSession(dataDir string, sess *session.Session) error {
	if err := boltsnap.Save(dataDir, sess.Catalog, sess.Store); err != nil {
		return fmt.Errorf("saving snapshot to %s: %w", dataDir, err)
	}
	logrus.WithField("path", dataDir).Info("saved snapshot")
	return nil
}
