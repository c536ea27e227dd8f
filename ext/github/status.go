package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/github"
	"golang.org/x/oauth2"

	"github.com/odpf/priest/config"
	"github.com/odpf/priest/core/container"
	"github.com/odpf/priest/core/instance"
	"github.com/odpf/priest/internal/errors"
)

const EntityGithubStatus = "github_status"

var descriptions = map[container.Status]string{
	container.StatusSuccess: "Tests completed successfully on Runnable",
	container.StatusFailure: "Build failed on Runnable",
	container.StatusError:   "Tests failed on Runnable",
}

// StatusCreator sets commit statuses, implemented by RepositoriesService.
type StatusCreator interface {
	CreateStatus(ctx context.Context, owner, repo, ref string, status *github.RepoStatus) (*github.RepoStatus, *github.Response, error)
}

// NewClient returns a token authenticated client, BaseURL selects a GitHub
// Enterprise api.
func NewClient(ctx context.Context, conf config.GithubConfig) (*github.Client, error) {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: conf.Token})
	client := github.NewClient(oauth2.NewClient(ctx, tokenSource))
	if conf.BaseURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(conf.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github base url %s: %w", conf.BaseURL, err)
		}
		client.BaseURL = baseURL
	}
	return client, nil
}

type StatusReporter struct {
	statuses      StatusCreator
	webURL        string
	statusContext string
}

func NewStatusReporter(statuses StatusCreator, conf config.GithubConfig) *StatusReporter {
	return &StatusReporter{
		statuses:      statuses,
		webURL:        strings.TrimSuffix(conf.WebURL, "/"),
		statusContext: conf.StatusContext,
	}
}

// SetStatus sets the commit status of the main repository of inst. Setting
// the same status twice is harmless.
func (r StatusReporter) SetStatus(ctx context.Context, inst *instance.Instance, acv instance.AppCodeVersion, status container.Status) error {
	owner, repo, ok := acv.RepoOwnerAndName()
	if !ok {
		return errors.FailedPrecondition(EntityGithubStatus, "repo is not in owner/name form").
			WithField("instanceId", inst.ID).
			WithField("repo", acv.Repo)
	}
	if acv.Commit == "" {
		return errors.FailedPrecondition(EntityGithubStatus, "app code version has no commit").
			WithField("instanceId", inst.ID).
			WithField("repo", acv.Repo)
	}
	if inst.Name == "" {
		return errors.FailedPrecondition(EntityGithubStatus, "instance has no name").
			WithField("instanceId", inst.ID)
	}
	if !status.Reportable() {
		return errors.FailedPrecondition(EntityGithubStatus, "status is empty").
			WithField("instanceId", inst.ID)
	}

	instanceOwner := inst.Owner.Username
	if instanceOwner == "" {
		instanceOwner = owner
	}
	repoStatus := &github.RepoStatus{
		State:       github.String(status.String()),
		TargetURL:   github.String(fmt.Sprintf("%s/%s/%s", r.webURL, instanceOwner, inst.Name)),
		Description: github.String(descriptions[status]),
		Context:     github.String(fmt.Sprintf("%s/%s", r.statusContext, inst.Name)),
	}

	_, _, err := r.statuses.CreateStatus(ctx, owner, repo, acv.Commit, repoStatus)
	return classifyError(err)
}

// classifyError marks the rejections which will not change on retry as fatal.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateLimitErr) || errors.As(err, &abuseErr) {
		return errors.InternalError(EntityGithubStatus, "github rate limit exceeded", err)
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
			return errors.FatalReporting(EntityGithubStatus,
				fmt.Sprintf("github rejected the status with %d", respErr.Response.StatusCode), err)
		}
	}
	return errors.InternalError(EntityGithubStatus, "unable to set github status", err)
}
