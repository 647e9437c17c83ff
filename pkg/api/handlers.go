package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/relayd/relayd/pkg/model"
)

var validate = validator.New()

func bindAndValidate(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, &model.ConfError{Msg: err.Error()})
		return false
	}
	if err := validate.Struct(v); err != nil {
		respondError(c, &model.ConfError{Msg: err.Error()})
		return false
	}
	if err := validateAuth(v); err != nil {
		respondError(c, &model.ConfError{Msg: err.Error()})
		return false
	}
	return true
}

// validateAuth rejects an unrecognized auth.method on any request body that
// carries an *model.Auth, since Auth's non-exhaustive enum shape otherwise
// accepts unknown methods silently through JSON decoding.
func validateAuth(v any) error {
	switch body := v.(type) {
	case *model.CreateService:
		if body.Auth != nil {
			if err := body.Auth.Validate(); err != nil {
				return err
			}
		}
		if body.User != nil && body.User.Auth != nil {
			return body.User.Auth.Validate()
		}
	}
	return nil
}

func (m *Management) getServices(c *gin.Context) {
	var all []model.Service
	for _, inst := range m.manager.Proxies() {
		all = append(all, inst.State().Services()...)
	}
	c.JSON(http.StatusOK, all)
}

func (m *Management) postServices(c *gin.Context) {
	var create model.CreateService
	if !bindAndValidate(c, &create) {
		return
	}

	inst, merged, err := m.manager.GetOrSpawn(context.Background(), create)
	if err != nil {
		respondError(c, err)
		return
	}
	svc, err := inst.AddService(merged)
	if err != nil {
		respondError(c, err)
		return
	}
	if m.metrics != nil {
		m.metrics.ProxyInstances.Set(float64(len(m.manager.Proxies())))
	}
	c.JSON(http.StatusOK, svc)
}

func (m *Management) getService(c *gin.Context) {
	name := c.Param("service")
	inst, ok := m.manager.ProxyByName(name)
	if !ok {
		respondError(c, &model.ServiceError{Kind: model.ServiceNotFound, Name: name})
		return
	}
	svc, err := inst.State().GetService(name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (m *Management) deleteService(c *gin.Context) {
	name := c.Param("service")
	inst, ok := m.manager.ProxyByName(name)
	if !ok {
		respondError(c, &model.ServiceError{Kind: model.ServiceNotFound, Name: name})
		return
	}
	if err := inst.RemoveService(name); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Management) getUsers(c *gin.Context) {
	name := c.Param("service")
	inst, ok := m.manager.ProxyByName(name)
	if !ok {
		respondError(c, &model.ServiceError{Kind: model.ServiceNotFound, Name: name})
		return
	}
	users, err := inst.State().Users(name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (m *Management) postUser(c *gin.Context) {
	name := c.Param("service")
	inst, ok := m.manager.ProxyByName(name)
	if !ok {
		respondError(c, &model.ServiceError{Kind: model.ServiceNotFound, Name: name})
		return
	}
	var create model.CreateUser
	if !bindAndValidate(c, &create) {
		return
	}
	user, err := inst.AddUser(name, create)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (m *Management) getUser(c *gin.Context) {
	name, username := c.Param("service"), c.Param("user")
	inst, ok := m.manager.ProxyByName(name)
	if !ok {
		respondError(c, &model.ServiceError{Kind: model.ServiceNotFound, Name: name})
		return
	}
	user, err := inst.State().GetUser(name, username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (m *Management) deleteUser(c *gin.Context) {
	name, username := c.Param("service"), c.Param("user")
	inst, ok := m.manager.ProxyByName(name)
	if !ok {
		respondError(c, &model.ServiceError{Kind: model.ServiceNotFound, Name: name})
		return
	}
	if err := inst.RemoveUser(name, username); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Management) getUserStats(c *gin.Context) {
	name, username := c.Param("service"), c.Param("user")
	inst, ok := m.manager.ProxyByName(name)
	if !ok {
		respondError(c, &model.ServiceError{Kind: model.ServiceNotFound, Name: name})
		return
	}
	stats, found := inst.Stats().UserStats(username)
	if !found {
		respondError(c, &model.UserError{Kind: model.UserNotFound, Username: username})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": stats.Total})
}

func (m *Management) getUserEndpointStats(c *gin.Context) {
	name, username := c.Param("service"), c.Param("user")
	inst, ok := m.manager.ProxyByName(name)
	if !ok {
		respondError(c, &model.ServiceError{Kind: model.ServiceNotFound, Name: name})
		return
	}
	endpoints, found := inst.Stats().UserEndpointStats(username)
	if !found {
		respondError(c, &model.UserError{Kind: model.UserNotFound, Username: username})
		return
	}
	c.JSON(http.StatusOK, endpoints)
}
