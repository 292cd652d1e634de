package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.viam.com/utils"

	"litesim"
	"litesim/scripts"
	"litesim/xarm"
)

// scanTimeout bounds a subnet sweep started from the API.
const scanTimeout = 30 * time.Second

func ok(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{Status: "success", Message: message, Data: data})
}

func fail(c *gin.Context, code int, err error) {
	c.JSON(code, Response{Status: "error", Error: err.Error()})
}

func (s *Server) handleStatus(c *gin.Context) {
	cc := s.arm.Context()
	data := StatusData{
		Version:         s.arm.Version(),
		Mode:            s.arm.Mode().String(),
		Joints:          s.arm.Joints(),
		Moving:          s.arm.IsMoving(),
		Paused:          cc.Paused(),
		SpeedMultiplier: s.arm.SpeedMultiplier(),
		Script:          s.runner.Status(),
		Viewers:         s.hub.ClientCount(),
	}
	if pose, err := s.arm.CurrentPose(); err == nil {
		data.Pose = &pose
	}
	ok(c, http.StatusOK, "", data)
}

func connectStatus(err error) int {
	var connErr *litesim.ConnectionError
	switch {
	case errors.Is(err, litesim.ErrInvalidAddress), errors.Is(err, litesim.ErrDriverUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, litesim.ErrAlreadyConnected), errors.Is(err, litesim.ErrConnectInProgress),
		errors.Is(err, litesim.ErrMotionInProgress):
		return http.StatusConflict
	case errors.As(err, &connErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleConnect(c *gin.Context) {
	if s.runner.Status().Running {
		fail(c, http.StatusConflict, scripts.ErrBusy)
		return
	}
	var req ConnectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		address = s.arm.Config().Address
	}

	if err := s.arm.Connect(c.Request.Context(), address); err != nil {
		s.logger.Warnf("Connect to %q failed: %v", address, err)
		fail(c, connectStatus(err), err)
		return
	}
	ok(c, http.StatusOK, "connected", gin.H{"address": address, "joints": s.arm.Joints()})
}

func (s *Server) handleDisconnect(c *gin.Context) {
	if s.runner.Status().Running {
		fail(c, http.StatusConflict, scripts.ErrBusy)
		return
	}
	if err := s.arm.Disconnect(c.Request.Context()); err != nil {
		fail(c, connectStatus(err), err)
		return
	}
	ok(c, http.StatusOK, "disconnected", gin.H{"joints": s.arm.Joints()})
}

func (s *Server) handleHome(c *gin.Context) {
	if s.runner.Status().Running {
		fail(c, http.StatusConflict, scripts.ErrBusy)
		return
	}
	if err := s.arm.Home(c.Request.Context()); err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	ok(c, http.StatusOK, "homed", nil)
}

func (s *Server) handleJog(c *gin.Context) {
	if s.runner.Status().Running {
		fail(c, http.StatusConflict, scripts.ErrBusy)
		return
	}
	var req JogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	target := *req.Joints
	if req.Radians {
		target = litesim.JointsFromRadians(target)
	}

	code, err := s.arm.Jog(c.Request.Context(), target)
	switch {
	case errors.Is(err, litesim.ErrMotionInProgress), errors.Is(err, litesim.ErrModeChanged):
		fail(c, http.StatusConflict, err)
	case err != nil:
		fail(c, http.StatusBadGateway, err)
	case code != litesim.CodeOK:
		fail(c, http.StatusBadGateway, fmt.Errorf("arm returned code %d", code))
	default:
		ok(c, http.StatusOK, "", gin.H{"joints": s.arm.Joints()})
	}
}

func (s *Server) handleSpeed(c *gin.Context) {
	var req SpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.arm.SetSpeedMultiplier(req.Multiplier)
	ok(c, http.StatusOK, "", gin.H{"speed_multiplier": s.arm.SpeedMultiplier()})
}

func (s *Server) handleReach(c *gin.Context) {
	var target litesim.PoseTarget
	if err := c.ShouldBindJSON(&target); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	goal, err := s.arm.ResolveTarget(target)
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, err)
		return
	}

	joints, err := s.arm.CheckReachable(goal)
	switch {
	case errors.Is(err, litesim.ErrNoKinematics):
		fail(c, http.StatusUnprocessableEntity, err)
	case err != nil:
		ok(c, http.StatusOK, "", ReachData{Target: goal, Reason: err.Error()})
	default:
		ok(c, http.StatusOK, "", ReachData{Reachable: true, Target: goal, Joints: &joints})
	}
}

func (s *Server) handleScan(c *gin.Context) {
	subnet := c.Query("subnet")
	if subnet == "" {
		subnet = xarm.LocalSubnet()
	}
	port := xarm.ReportPort
	if raw := c.Query("port"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p <= 0 || p > 65535 {
			fail(c, http.StatusBadRequest, errors.New("invalid port"))
			return
		}
		port = p
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), scanTimeout)
	defer cancel()
	hosts, err := s.scan(ctx, subnet, port)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if hosts == nil {
		hosts = []string{}
	}
	ok(c, http.StatusOK, "", gin.H{"subnet": subnet, "port": port, "hosts": hosts})
}

func (s *Server) handleScripts(c *gin.Context) {
	ok(c, http.StatusOK, "", gin.H{"scripts": s.runner.Scripts()})
}

func (s *Server) handleRun(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}

	name := c.Param("name")
	id, err := s.runner.Start(name, scripts.RunOptions{Loop: req.Loop, DisconnectOnFinish: req.DisconnectOnFinish})
	switch {
	case errors.Is(err, scripts.ErrUnknownScript):
		fail(c, http.StatusNotFound, err)
	case errors.Is(err, scripts.ErrBusy):
		fail(c, http.StatusConflict, err)
	case err != nil:
		fail(c, http.StatusInternalServerError, err)
	default:
		ok(c, http.StatusAccepted, "started", gin.H{"run_id": id, "script": name, "loop": req.Loop})
	}
}

func (s *Server) handleRestart(c *gin.Context) {
	id, err := s.runner.Restart(c.Request.Context())
	switch {
	case errors.Is(err, scripts.ErrNothingToRestart), errors.Is(err, scripts.ErrBusy):
		fail(c, http.StatusConflict, err)
	case err != nil:
		fail(c, http.StatusInternalServerError, err)
	default:
		ok(c, http.StatusAccepted, "restarted", gin.H{"run_id": id})
	}
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.runner.Stop(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, http.StatusOK, "stopped", gin.H{"joints": s.arm.Joints()})
}

func (s *Server) handlePause(c *gin.Context) {
	s.runner.Pause()
	ok(c, http.StatusOK, "paused", nil)
}

func (s *Server) handleResume(c *gin.Context) {
	s.runner.Resume()
	ok(c, http.StatusOK, "resumed", nil)
}

func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debugf("Websocket upgrade failed: %v", err)
		return
	}
	client := newClient(s.hub, conn)
	if frame, err := json.Marshal(jointsFrame{Type: "joints", Joints: s.arm.Joints()}); err == nil {
		client.send <- frame
	}
	utils.PanicCapturingGo(client.serve)
}
