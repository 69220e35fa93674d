package biophys

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/log"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/google/uuid"

	"github.com/cropsense/s2-biophys/service/raster"
	"go.uber.org/zap/zapcore"
)

type DockerConfig struct {
	Envs             []string
	RegistryServer   string // "https://europe-west1-docker.pkg.dev" for gcs for example
	RegistryUserName string // _json_key for gcs
	RegistryPassword string // service account for gcs
	VolumesToMount   string // List of volumes to mount (comma separated)
}

// SetFlags configures flags for a docker config
// Returns dockerEnvs as string, comma sep.
//
// cfg := DockerConfig{}
// dockerEnvsStr := cfg.SetFlags()
//
// flag.Parse()
//
//	if *dockerEnvsStr != "" {
//			cfg.Envs = strings.Split(*dockerEnvsStr, ",")
//		}
func (cfg *DockerConfig) SetFlags() *string {
	// Docker processing Images connection
	flag.StringVar(&cfg.RegistryUserName, "docker-registry-username", "_json_key", "username to authentication on private registry")
	flag.StringVar(&cfg.RegistryPassword, "docker-registry-password", "", "password to authentication on private registry")
	flag.StringVar(&cfg.RegistryServer, "docker-registry-server", "", "address of server to authenticate on private registry (e.g. https://europe-west1-docker.pkg.dev)")
	flag.StringVar(&cfg.VolumesToMount, "docker-mount-volumes", "", "list of volumes to mount on the docker (comma separated)")

	return flag.String("docker-envs", "", "docker variable env key white list (comma sep) ")
}

// DockerEngine runs the biophysical model in a container. The scratch
// directory of each run is bind-mounted into the container so the model reads
// input.tif and writes output.tif in place.
type DockerEngine struct {
	client         *client.Client
	image          string
	args           []string
	workdir        string
	envs           []string
	volumesToMount []string
	authConfig     string // encoded base64
}

// NewDockerEngine connects to the docker daemon (waiting up to 5mn for it to
// start) and prepares the registry authentication for the model image.
// args is the fixed part of the command line run inside the container.
func NewDockerEngine(ctx context.Context, config DockerConfig, modelImage, args, workdir string) (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create new docker client: %w", err)
	}

	var encodedAuthLogin string
	if config.RegistryUserName != "" && config.RegistryPassword != "" && config.RegistryServer != "" {
		log.Logger(ctx).Info("register to container registry...")
		auth := registry.AuthConfig{
			Username:      config.RegistryUserName,
			Password:      config.RegistryPassword,
			ServerAddress: config.RegistryServer,
		}
		if encodedAuthLogin, err = registry.EncodeAuthConfig(auth); err != nil {
			return nil, fmt.Errorf("NewDockerEngine: %w", err)
		}
	}

	e := &DockerEngine{
		client:     cli,
		image:      modelImage,
		args:       strings.Fields(args),
		workdir:    workdir,
		envs:       config.Envs,
		authConfig: encodedAuthLogin,
	}
	if len(config.VolumesToMount) > 0 {
		e.volumesToMount = strings.Split(config.VolumesToMount, ",")
	}

	if err := e.ping(ctx, 5*time.Minute); err != nil {
		return nil, fmt.Errorf("NewDockerEngine.%w", err)
	}

	return e, nil
}

func (e *DockerEngine) ping(ctx context.Context, timeout time.Duration) error {
	var err error
	ctx, cnl := context.WithTimeout(ctx, timeout)
	defer cnl()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to found docker daemon: %w", err)
		default:
			if _, err = e.client.Ping(ctx); err == nil {
				return nil
			}
			log.Logger(ctx).Info("Waiting for docker daemon...")
			time.Sleep(5 * time.Second)
		}
	}
}

// Run implements Runner
func (e *DockerEngine) Run(ctx context.Context, req Request) (Result, error) {
	workdir := filepath.Join(e.workdir, uuid.New().String())
	if err := os.MkdirAll(workdir, 0766); err != nil {
		return Result{}, service.MakeTemporary(fmt.Errorf("make directory %s: %w", workdir, err))
	}
	defer os.RemoveAll(workdir)

	input := filepath.Join(workdir, "input.tif")
	output := filepath.Join(workdir, "output.tif")
	in := raster.Raster{Grid: req.Grid, Bands: req.Bands}
	if err := in.WriteGTiff(input); err != nil {
		return Result{}, fmt.Errorf("Run.%w", err)
	}

	filter := &DockerLogFilter{}
	if err := e.process(ctx, workdir, arguments(e.args, input, output, req), filter); err != nil {
		return Result{}, fmt.Errorf("Run[%s].%w", req.Variable, err)
	}

	res, err := readResult(output, req)
	if err != nil {
		return Result{}, fmt.Errorf("Run.%w", err)
	}
	return res, nil
}

func (e *DockerEngine) process(ctx context.Context, workdir string, args []string, filter *DockerLogFilter) error {
	if err := e.ping(ctx, time.Minute); err != nil {
		return fmt.Errorf("process.%w", err)
	}

	imageInfo, err := e.localImageInfo(ctx)
	if err != nil {
		log.Logger(ctx).Info("pulling image " + e.image)
		if imageInfo, err = e.pullImage(ctx); err != nil {
			return fmt.Errorf("process.%w", err)
		}
	}

	var availableEnvs []string
	for _, env := range os.Environ() {
		for _, wlEnv := range e.envs {
			if strings.HasPrefix(env, wlEnv) {
				availableEnvs = append(availableEnvs, env)
			}
		}
	}

	mounts := []mount.Mount{{
		Type:     mount.TypeBind,
		Source:   workdir,
		Target:   workdir,
		ReadOnly: false,
	}}
	for _, volume := range e.volumesToMount {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   volume,
			Target:   volume,
			ReadOnly: true,
		})
	}

	containerConfig := &container.Config{
		Image:        imageInfo.ID,
		Cmd:          args,
		AttachStdout: true,
		WorkingDir:   workdir,
		Env:          availableEnvs,
	}

	hostConfig := &container.HostConfig{
		Mounts: mounts,
	}

	created, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create %s container: %w", e.image, err)
	}

	defer func() {
		if err := e.client.ContainerStop(ctx, created.ID, container.StopOptions{}); err != nil {
			log.Logger(ctx).Sugar().Warnf("failed to stop container: %s", created.ID)
		}
		if err := e.client.ContainerRemove(ctx, created.ID, container.RemoveOptions{}); err != nil {
			log.Logger(ctx).Sugar().Warnf("failed to remove container: %s", created.ID)
		}
	}()

	if err := e.runContainer(ctx, created.ID, filter); err != nil {
		return fmt.Errorf("failed to run %s container: %w", e.image, err)
	}

	return nil
}

func (e *DockerEngine) pullImage(ctx context.Context) (image.Summary, error) {
	imagePullRc, err := e.client.ImagePull(ctx, e.image, image.PullOptions{
		RegistryAuth: e.authConfig,
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "timeout") {
			err = service.MakeTemporary(err)
		}
		return image.Summary{}, fmt.Errorf("failed to pull image %s: %w", e.image, err)
	}

	defer imagePullRc.Close()
	imagePullb, err := io.ReadAll(imagePullRc)
	if err != nil {
		log.Logger(ctx).Sugar().Errorf("failed to read image pull information: %v", err)
	} else {
		log.Logger(ctx).Sugar().Debugf(string(imagePullb))
	}
	return e.localImageInfo(ctx)
}

func (e *DockerEngine) localImageInfo(ctx context.Context) (image.Summary, error) {
	filter := filters.NewArgs()
	filter.Add("reference", e.image)

	images, err := e.client.ImageList(ctx, image.ListOptions{
		All:     false,
		Filters: filter,
	})
	if err != nil {
		return image.Summary{}, service.MakeTemporary(fmt.Errorf("failed to list image %s: %w", e.image, err))
	}

	if len(images) < 1 {
		return image.Summary{}, service.MakeTemporary(fmt.Errorf("not found: %s", e.image))
	}

	return images[0], nil
}

func (e *DockerEngine) runContainer(ctx context.Context, containerID string, filter *DockerLogFilter) error {
	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	containerLogs, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Details:    false,
		Timestamps: false,
	})
	if err != nil {
		return fmt.Errorf("failed to retrieve logs")
	}

	logwg := sync.WaitGroup{}
	logwg.Add(1)
	go func() {
		defer logwg.Done()
		defer containerLogs.Close()
		e.logLines(ctx, containerLogs, filter)
	}()

	logwg.Wait()

	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case exit := <-statusCh:
		if exit.StatusCode != 0 {
			return filter.WrapError(fmt.Errorf("container exited with status %d", exit.StatusCode))
		}
	}

	return nil
}

func (e *DockerEngine) logLines(ctx context.Context, sr io.Reader, filter *DockerLogFilter) {
	r := bufio.NewReader(sr)
	insideTooLongLine := false
	for {
		line, err := r.ReadSlice('\n')
		if !insideTooLongLine && len(line) >= 8 {
			line = line[8:] // stream is multiplexed: remove header
		}
		if err == io.EOF {
			if !insideTooLongLine && len(line) > 0 {
				e.log(ctx, string(line), filter)
			}
			return
		}
		if insideTooLongLine {
			if err == nil {
				//reset
				insideTooLongLine = false
			}
		} else {
			if err == bufio.ErrBufferFull {
				e.log(ctx, fmt.Sprintf("%s ...[Message clipped]", line), filter)
				insideTooLongLine = true
			} else {
				if len(line) > 0 {
					e.log(ctx, string(line), filter)
				}
			}
		}
	}
}

func (e *DockerEngine) log(ctx context.Context, msg string, filter *DockerLogFilter) {
	var level zapcore.Level
	var ignore bool
	if msg, level, ignore = filter.Filter(msg, zapcore.DebugLevel); ignore {
		return
	}
	logger := log.Logger(ctx)
	if ce := logger.Check(level, msg); ce != nil {
		ce.Write()
	}
}
