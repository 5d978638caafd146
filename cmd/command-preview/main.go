package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wangshanqi84-gif/quiver/app"
	"github.com/wangshanqi84-gif/quiver/app/config"
	"github.com/wangshanqi84-gif/quiver/configuration/file"
	"github.com/wangshanqi84-gif/quiver/cores/registry/command"
	"github.com/wangshanqi84-gif/quiver/cores/url"
	"github.com/wangshanqi84-gif/quiver/logger"

	"github.com/pkg/errors"
)

type options struct {
	config  string
	format  string
	service string
	group   string
	ip      string
	command string
	timeout time.Duration
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("command-preview", flag.ContinueOnError)
	fs.StringVar(&o.config, "config", "registry.yaml", "registry config file")
	fs.StringVar(&o.format, "format", "yaml", "config file format json/yaml/xml")
	fs.StringVar(&o.service, "service", "", "service path, e.g. com.foo.Bar")
	fs.StringVar(&o.group, "group", "", "service group, default from config")
	fs.StringVar(&o.ip, "ip", "", "caller ip used by route rules")
	fs.StringVar(&o.command, "command", "", "command json file, empty to use the live command")
	fs.DurationVar(&o.timeout, "timeout", 10*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.service == "" {
		return nil, errors.New("-service is required")
	}
	return o, nil
}

// loadCommand 读取指令文件 为空时读取注册中心上的指令 均为空返回nil
func loadCommand(ctx context.Context, r *command.Registry, key *url.URL, path string) (*command.Command, error) {
	var raw string
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read command file %s", path)
		}
		raw = string(bs)
	} else {
		live, err := r.Backend().DiscoverCommand(ctx, key)
		if err != nil {
			return nil, err
		}
		raw = live
	}
	if raw == "" {
		return nil, nil
	}
	cmd, err := command.Parse(raw)
	if err != nil {
		return nil, err
	}
	cmd.Sort()
	return cmd, nil
}

func printResult(w io.Writer, key *url.URL, cmd *command.Command, urls []*url.URL) {
	if cmd == nil {
		fmt.Fprintf(w, "no command, service %s\n", key.SimpleString())
	} else {
		fmt.Fprintf(w, "command: %s\n", cmd.String())
	}
	fmt.Fprintf(w, "%d endpoints\n", len(urls))
	for _, u := range urls {
		fmt.Fprintf(w, "  %s group=%s weight=%s\n", u.Address(), u.Group(), u.Parameter(url.ParamWeight, "-"))
	}
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	cfg := &config.ServiceConfig{}
	if err = file.NewConfigClient(ctx, o.format).GetConfig(o.config, cfg); err != nil {
		return err
	}
	if cfg.Registry == nil {
		return errors.Errorf("registry config missing in %s", o.config)
	}
	r, err := app.NewRegistry(ctx, cfg.Registry)
	if err != nil {
		return err
	}
	defer r.Close()

	group := o.group
	if group == "" {
		group = cfg.Registry.Group
	}
	params := map[string]string{url.ParamNodeType: url.NodeTypeReferer}
	if group != "" {
		params[url.ParamGroup] = group
	}
	key := url.New("quiver", o.ip, 0, o.service, params)

	cmd, err := loadCommand(ctx, r, key, o.command)
	if err != nil {
		return err
	}
	urls, err := r.CommandPreview(ctx, key, cmd, o.ip)
	if err != nil {
		return err
	}
	printResult(stdout, key, cmd, urls)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logger.Gen(context.Background(), "command preview failed, err:%v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
