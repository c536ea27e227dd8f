package instance

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/odpf/priest/core/instance"
	"github.com/odpf/priest/internal/errors"
)

const (
	instanceColumns = `id, name, owner, context_version_id, app_code_versions, container_docker_id, is_testing, created_at, updated_at`
)

type Instance struct {
	ID                string `gorm:"primary_key"`
	Name              string
	Owner             datatypes.JSON
	ContextVersionID  string
	AppCodeVersions   datatypes.JSON
	ContainerDockerID sql.NullString
	IsTesting         bool

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (i Instance) toInstance() (*instance.Instance, error) {
	var owner instance.Owner
	if len(i.Owner) > 0 {
		if err := json.Unmarshal(i.Owner, &owner); err != nil {
			return nil, errors.Wrap(instance.EntityInstance, "unable to decode owner of "+i.ID, err)
		}
	}
	var acvs []instance.AppCodeVersion
	if len(i.AppCodeVersions) > 0 {
		if err := json.Unmarshal(i.AppCodeVersions, &acvs); err != nil {
			return nil, errors.Wrap(instance.EntityInstance, "unable to decode app code versions of "+i.ID, err)
		}
	}
	return &instance.Instance{
		ID:    i.ID,
		Name:  i.Name,
		Owner: owner,
		ContextVersion: instance.ContextVersion{
			ID:              i.ContextVersionID,
			AppCodeVersions: acvs,
		},
		Container: instance.Container{DockerContainer: i.ContainerDockerID.String},
		IsTesting: i.IsTesting,
	}, nil
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r Repository) FindTestingByContextVersion(ctx context.Context, contextVersionID string) ([]*instance.Instance, error) {
	var records []Instance

	query := `SELECT ` + instanceColumns + ` FROM instance WHERE context_version_id = ? AND is_testing = true ORDER BY created_at`
	if err := r.db.WithContext(ctx).Raw(query, contextVersionID).Scan(&records).Error; err != nil {
		return nil, errors.InternalError(instance.EntityInstance, "error while getting testing instances", err)
	}

	instances := make([]*instance.Instance, 0, len(records))
	for _, record := range records {
		inst, err := record.toInstance()
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}
