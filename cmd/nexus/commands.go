package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	serveradapter "github.com/hylla/nexus/internal/adapters/server"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/config"
	"github.com/hylla/nexus/internal/domain"
	"github.com/hylla/nexus/internal/tui"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func (c *cli) newServeCommand() *cobra.Command {
	var httpBind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.open(envOptions{consoleLogs: true, withSync: true})
			if err != nil {
				return err
			}
			defer env.Close()

			auth, err := buildAuthenticator(env.cfg.Auth)
			if err != nil {
				return err
			}
			srv := env.cfg.Server
			if strings.TrimSpace(httpBind) != "" {
				srv.HTTPBind = httpBind
			}
			env.logger.Info("command flow start", "command", "serve", "auth_mode", env.cfg.Auth.Mode, "sync", env.dispatcher != nil)
			err = serveCommandRunner(cmd.Context(), serveradapter.Config{
				HTTPBind:        srv.HTTPBind,
				APIEndpoint:     srv.APIEndpoint,
				MCPEndpoint:     srv.MCPEndpoint,
				ServerName:      env.opts.appName,
				ServerVersion:   version,
				MaxBodyBytes:    srv.MaxBodyBytes,
				UploadMaxBytes:  srv.UploadMaxBytes,
				RateLimitRPS:    srv.RateLimitRPS,
				RateLimitBurst:  srv.RateLimitBurst,
				ShutdownTimeout: srv.ShutdownTimeout.Duration,
			}, serveradapter.Dependencies{
				Service:       env.svc,
				Authenticator: auth,
				Logger:        env.logger,
				Ping:          env.repo.Ping,
			})
			if err != nil {
				env.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			env.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (overrides server.http_bind)")
	return cmd
}

func (c *cli) newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config, register the local identity, and ensure the default workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.open(envOptions{})
			if err != nil {
				return err
			}
			defer env.Close()

			wrote, err := writeStarterConfig(env.configPath, env.cfg)
			if err != nil {
				return err
			}
			ctx, user, err := env.signIn(cmd.Context())
			if err != nil {
				return err
			}
			ws, err := env.svc.EnsureDefaultWorkspace(ctx)
			if err != nil {
				return fmt.Errorf("ensure default workspace: %w", err)
			}
			if wrote {
				_, _ = fmt.Fprintf(c.stdout, "config: %s (created)\n", env.configPath)
			} else {
				_, _ = fmt.Fprintf(c.stdout, "config: %s\n", env.configPath)
			}
			_, _ = fmt.Fprintf(c.stdout, "user: %s <%s> (%s)\n", user.DisplayName, user.Email, user.ID)
			_, _ = fmt.Fprintf(c.stdout, "workspace: %s (%s)\n", ws.Slug, ws.ID)
			return nil
		},
	}
}

// writeStarterConfig writes cfg to path when no file exists yet. Secrets are never written.
func writeStarterConfig(path string, cfg config.Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if err := config.EnsureConfigDir(path); err != nil {
		return false, err
	}
	cfg.Auth.JWTSecret = ""
	cfg.Graph.AccessToken = ""
	content, err := toml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

func (c *cli) newPathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			rc, err := resolveConfig(c.opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "app: %s\n", rc.opts.appName)
			_, _ = fmt.Fprintf(c.stdout, "dev_mode: %t\n", rc.opts.devMode)
			_, _ = fmt.Fprintf(c.stdout, "config: %s\n", rc.configPath)
			_, _ = fmt.Fprintf(c.stdout, "data_dir: %s\n", rc.paths.DataDir)
			_, _ = fmt.Fprintf(c.stdout, "db: %s\n", rc.cfg.Database.Path)
			_, _ = fmt.Fprintf(c.stdout, "uploads: %s\n", rc.cfg.Storage.UploadDir)
			_, _ = fmt.Fprintf(c.stdout, "logs: %s\n", rc.paths.LogDir)
			return nil
		},
	}
}

func (c *cli) newProjectsCommand() *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects in a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.open(envOptions{})
			if err != nil {
				return err
			}
			defer env.Close()
			ctx, _, err := env.signIn(cmd.Context())
			if err != nil {
				return err
			}
			if workspaceID == "" {
				ws, err := env.svc.EnsureDefaultWorkspace(ctx)
				if err != nil {
					return err
				}
				workspaceID = ws.ID
			}
			projects, err := env.svc.ListProjects(ctx, workspaceID)
			if err != nil {
				return err
			}
			for _, p := range projects {
				_, _ = fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", p.ID, p.Status, p.Name)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&workspaceID, "workspace", "", "workspace id (default workspace when empty)")

	var name, description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.open(envOptions{})
			if err != nil {
				return err
			}
			defer env.Close()
			ctx, _, err := env.signIn(cmd.Context())
			if err != nil {
				return err
			}
			wsID := workspaceID
			if wsID == "" {
				ws, err := env.svc.EnsureDefaultWorkspace(ctx)
				if err != nil {
					return err
				}
				wsID = ws.ID
			}
			project, err := env.svc.CreateProject(ctx, app.CreateProjectInput{
				WorkspaceID: wsID,
				Name:        name,
				Description: description,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.stdout, project.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	create.Flags().StringVar(&description, "description", "", "project description")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)
	return cmd
}

func (c *cli) newTasksCommand() *cobra.Command {
	var (
		projectID string
		flat      bool
	)
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Print a project's task tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.open(envOptions{})
			if err != nil {
				return err
			}
			defer env.Close()
			ctx, _, err := env.signIn(cmd.Context())
			if err != nil {
				return err
			}
			if flat {
				tasks, err := env.svc.ListTasks(ctx, projectID)
				if err != nil {
					return err
				}
				for _, task := range tasks {
					_, _ = fmt.Fprintf(c.stdout, "%s\t%s\t%s\t%s\n", task.ID, task.Status, task.Priority, task.Title)
				}
				return nil
			}
			nodes, err := env.svc.ListTaskTree(ctx, projectID)
			if err != nil {
				return err
			}
			printTaskTree(c.stdout, nodes, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().BoolVar(&flat, "flat", false, "print every task on one line without nesting")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// printTaskTree writes one indented line per task, depth-first.
func printTaskTree(w io.Writer, nodes []domain.TaskNode, depth int) {
	for _, node := range nodes {
		line := fmt.Sprintf("%s- [%s] %s (%s)", strings.Repeat("  ", depth), node.Status, node.Title, node.ID)
		if node.Assignee != nil {
			line += " @" + node.Assignee.DisplayName
		}
		if node.DueDate != nil {
			line += " due " + node.DueDate.Format("2006-01-02")
		}
		_, _ = fmt.Fprintln(w, line)
		printTaskTree(w, node.Subtasks, depth+1)
	}
}

func (c *cli) newTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, inspect, and sync single tasks",
	}
	cmd.AddCommand(c.newTaskCreateCommand(), c.newTaskShowCommand(), c.newTaskSyncCommand())
	return cmd
}

func (c *cli) newTaskCreateCommand() *cobra.Command {
	var (
		in                     app.CreateTaskInput
		status, priority, kind string
		due                    string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task or subtask",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if strings.TrimSpace(status) != "" {
				if in.Status, err = domain.ParseTaskStatus(status); err != nil {
					return err
				}
			}
			if strings.TrimSpace(priority) != "" {
				if in.Priority, err = domain.ParsePriority(priority); err != nil {
					return err
				}
			}
			if strings.TrimSpace(kind) != "" {
				if in.Type, err = domain.ParseTaskType(kind); err != nil {
					return err
				}
			}
			if strings.TrimSpace(due) != "" {
				parsed, err := time.Parse("2006-01-02", strings.TrimSpace(due))
				if err != nil {
					return fmt.Errorf("parse --due: %w", err)
				}
				in.DueDate = &parsed
			}
			env, err := c.open(envOptions{withSync: true})
			if err != nil {
				return err
			}
			defer env.Close()
			ctx, _, err := env.signIn(cmd.Context())
			if err != nil {
				return err
			}
			task, err := env.svc.CreateTask(ctx, in)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.stdout, task.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in.ProjectID, "project", "", "project id")
	flags.StringVar(&in.ParentID, "parent", "", "parent task id")
	flags.StringVar(&in.AssigneeID, "assignee", "", "assignee user id")
	flags.StringVar(&in.Title, "title", "", "task title")
	flags.StringVar(&in.Description, "description", "", "task description (markdown)")
	flags.StringVar(&status, "status", "", "todo|in_progress|in_review|done|cancelled")
	flags.StringVar(&priority, "priority", "", "low|medium|high|urgent")
	flags.StringVar(&kind, "type", "", "roadmap_phase|milestone|task|subtask")
	flags.StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (c *cli) newTaskShowCommand() *cobra.Command {
	var (
		raw   bool
		width int
	)
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Render one task with its subtasks, checklist, comments, and files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.open(envOptions{})
			if err != nil {
				return err
			}
			defer env.Close()
			ctx, _, err := env.signIn(cmd.Context())
			if err != nil {
				return err
			}
			detail, err := env.svc.GetTaskDetail(ctx, args[0])
			if err != nil {
				return err
			}
			md := tui.TaskDetailMarkdown(detail)
			if raw {
				_, _ = io.WriteString(c.stdout, md)
				return nil
			}
			_, _ = fmt.Fprintln(c.stdout, tui.RenderMarkdown(md, width))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without terminal styling")
	cmd.Flags().IntVar(&width, "width", 100, "wrap width")
	return cmd
}

func (c *cli) newTaskSyncCommand() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "sync <task-id>",
		Short: "Push a task to the external calendar or to-do list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.open(envOptions{consoleLogs: true, withSync: true})
			if err != nil {
				return err
			}
			// Close drains the queue, so the job finishes before the process exits.
			defer env.Close()
			ctx, _, err := env.signIn(cmd.Context())
			if err != nil {
				return err
			}
			switch app.SyncKind(target) {
			case app.SyncKindCalendar:
				err = env.svc.SyncTaskToCalendar(ctx, args[0])
			case app.SyncKindTodo:
				err = env.svc.SyncTaskToTodo(ctx, args[0])
			default:
				return fmt.Errorf("unknown --target %q (want %s or %s)", target, app.SyncKindCalendar, app.SyncKindTodo)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "queued %s sync for %s\n", target, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", string(app.SyncKindTodo), "calendar|todo")
	return cmd
}

func (c *cli) newWorkloadCommand() *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "workload",
		Short: "Print per-member task counts for a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.open(envOptions{})
			if err != nil {
				return err
			}
			defer env.Close()
			ctx, _, err := env.signIn(cmd.Context())
			if err != nil {
				return err
			}
			if workspaceID == "" {
				ws, err := env.svc.EnsureDefaultWorkspace(ctx)
				if err != nil {
					return err
				}
				workspaceID = ws.ID
			}
			rows, err := env.svc.Workload(ctx, workspaceID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.stdout, workloadTable(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id (default workspace when empty)")
	return cmd
}

// workloadTable renders workload rows as a bordered table.
func workloadTable(rows []domain.Workload) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("MEMBER", "ROLE", "TOTAL", "TODO", "IN PROGRESS", "DONE", "OVERDUE")
	for _, row := range rows {
		name := row.DisplayName
		if name == "" {
			name = row.Email
		}
		t.Row(
			name,
			string(row.Role),
			strconv.Itoa(row.TotalTasks),
			strconv.Itoa(row.Todo),
			strconv.Itoa(row.InProgress),
			strconv.Itoa(row.Done),
			strconv.Itoa(row.Overdue),
		)
	}
	return t.String()
}

func (c *cli) newBoardCommand() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the interactive status board for a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.open(envOptions{})
			if err != nil {
				return err
			}
			defer env.Close()
			ctx, _, err := env.signIn(cmd.Context())
			if err != nil {
				return err
			}
			env.logger.Info("starting tui program loop", "project_id", projectID)
			if _, err := programFactory(tui.NewModel(env.svc, projectID, tui.WithContext(ctx))).Run(); err != nil {
				env.logger.Error("tui program terminated with error", "err", err)
				return fmt.Errorf("run tui program: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
