package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/registry"
)

func TestAudit_CountsAndClassifies(t *testing.T) {
	reg := registry.Default()
	observed := []string{
		`"LinkedIn" <jobalerts-noreply@linkedin.com>`,
		"recruiter@startup.io",
		"jobalerts-noreply@linkedin.com",
		"offres@diffusion.apec.fr",
		"Recruiter <RECRUITER@startup.io>",
		"  ",
	}

	rep := Audit(observed, reg)

	require.Len(t, rep.Rows, 3)
	assert.Equal(t, Row{SenderIdentity: "jobalerts-noreply@linkedin.com", SourceName: model.SourceLinkedIn, EnabledForCreation: true, ObservedCount: 2}, rep.Rows[0])
	assert.Equal(t, Row{SenderIdentity: "recruiter@startup.io", SourceName: model.SourceUnknown, EnabledForCreation: false, ObservedCount: 2, New: true}, rep.Rows[1])
	assert.Equal(t, Row{SenderIdentity: "offres@diffusion.apec.fr", SourceName: model.SourceApec, EnabledForCreation: true, ObservedCount: 1, New: true}, rep.Rows[2])

	assert.Equal(t, []Creation{
		{SenderIdentity: "recruiter@startup.io", SourceName: model.SourceUnknown, Capabilities: model.DiscoveryDefaults()},
		{SenderIdentity: "offres@diffusion.apec.fr", SourceName: model.SourceApec, Capabilities: model.AllEnabled()},
	}, rep.Creations)

	assert.Equal(t, 3, rep.ItemsArchivable)
	assert.Equal(t, 2, rep.ItemsPending)
}

func TestAudit_DoesNotMutateRegistry(t *testing.T) {
	reg := registry.Default()
	before := reg.List()

	Audit([]string{"new@sender.com"}, reg)

	assert.Equal(t, before, reg.List())
}

func TestAudit_IdempotentAfterApply(t *testing.T) {
	reg := registry.Default()
	observed := []string{"a@x.com", "b@y.com", "list:cadremploi", "a@x.com"}

	first := Audit(observed, reg)
	require.Len(t, first.Creations, 3)
	assert.Equal(t, 3, Apply(reg, first.Creations))

	second := Audit(observed, reg)
	assert.Empty(t, second.Creations)
	assert.Equal(t, 0, Apply(reg, second.Creations))
	for _, row := range second.Rows {
		assert.False(t, row.New, row.SenderIdentity)
	}
}

func TestAudit_ExistingEntryKeepsItsFlags(t *testing.T) {
	reg := registry.New([]model.Source{
		{Name: model.SourceGlassdoor, Capabilities: model.Capabilities{Creation: false}},
	})

	rep := Audit([]string{"noreply@glassdoor.com"}, reg)

	require.Len(t, rep.Rows, 1)
	assert.Equal(t, model.SourceGlassdoor, rep.Rows[0].SourceName)
	assert.False(t, rep.Rows[0].EnabledForCreation)
	assert.Equal(t, 1, rep.ItemsPending)

	Apply(reg, rep.Creations)
	g, _ := reg.Get(model.SourceGlassdoor)
	assert.False(t, g.Capabilities.Creation)
	assert.Equal(t, []string{"noreply@glassdoor.com"}, g.SenderIdentities)
}

func TestApply_MaterialisesUnknown(t *testing.T) {
	reg := registry.New(nil)

	n := Apply(reg, []Creation{{SenderIdentity: "who@what.com", SourceName: model.SourceUnknown, Capabilities: model.DiscoveryDefaults()}})

	assert.Equal(t, 1, n)
	unk, ok := reg.Get(model.SourceUnknown)
	require.True(t, ok)
	assert.Equal(t, model.DiscoveryDefaults(), unk.Capabilities)
	assert.Equal(t, []string{"who@what.com"}, unk.SenderIdentities)
}
