package projectsvc_test

import (
	"testing"

	"github.com/riverforge/contextmcp/internal/domain"
	"github.com/riverforge/contextmcp/internal/ids"
	"github.com/riverforge/contextmcp/internal/projectsvc"
	"github.com/riverforge/contextmcp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateValidatesName(t *testing.T) {
	f := testutil.New(t)
	_, err := f.Project.Create(f.Ctx(), projectsvc.CreateInput{Name: ""})
	assert.Error(t, err)
}

func TestCreateAndGet(t *testing.T) {
	f := testutil.New(t)
	p, err := f.Project.Create(f.Ctx(), projectsvc.CreateInput{Name: "acme", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, ids.EntityActive, p.Status)

	fetched, err := f.Project.Get(f.Ctx(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, fetched.ID)
}

func TestListReturnsAllProjects(t *testing.T) {
	f := testutil.New(t)
	_, err := f.Project.Create(f.Ctx(), projectsvc.CreateInput{Name: "a"})
	require.NoError(t, err)
	_, err = f.Project.Create(f.Ctx(), projectsvc.CreateInput{Name: "b"})
	require.NoError(t, err)

	all, err := f.Project.List(f.Ctx())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdatePartialPatch(t *testing.T) {
	f := testutil.New(t)
	p := f.SeedProject()

	updated, err := f.Project.Update(f.Ctx(), p.ID, domain.Doc{"description": "new desc"})
	require.NoError(t, err)
	assert.Equal(t, "new desc", updated.Description)
	assert.Equal(t, p.Name, updated.Name)
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	f := testutil.New(t)
	p := f.SeedProject()
	_, err := f.Project.Update(f.Ctx(), p.ID, domain.Doc{"status": "zombie"})
	assert.Error(t, err)
}

func TestDeleteRemovesProject(t *testing.T) {
	f := testutil.New(t)
	p := f.SeedProject()
	require.NoError(t, f.Project.Delete(f.Ctx(), p.ID))
	_, err := f.Project.Get(f.Ctx(), p.ID)
	assert.Error(t, err)
}
