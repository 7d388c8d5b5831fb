package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	iec104 "github.com/9d77v/iec104client"
	"github.com/9d77v/iec104client/example/client/utils"
)

//Settings 客户端程序配置
type Settings struct {
	Client iec104.Config `yaml:"client"`
	//Catalog 类型目录文件,为空时使用内置目录
	Catalog string `yaml:"catalog"`
	//Debug 是否debug模式
	Debug bool `yaml:"debug"`
	//LogFile 日志文件,为空时只输出到控制台
	LogFile string `yaml:"log_file"`
	//Output 解析结果输出文件,为空时输出到控制台
	Output string `yaml:"output"`
}

//Load 读取yaml配置,再用环境变量覆盖
//path为空或文件不存在时只使用默认值和环境变量
func Load(path string) (*Settings, error) {
	s := &Settings{
		Client:  iec104.DefaultConfig(),
		LogFile: "./logs/iec104.log",
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		default:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		}
	}
	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	return s, nil
}

//applyEnv SERVER_HOST、SERVER_PORT、DEBUG、LOG_FILE
func (s *Settings) applyEnv() error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		s.Client.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("SERVER_PORT[%s]非法: %w", port, err)
		}
		s.Client.Port = p
	}
	if debug := os.Getenv("DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err != nil {
			return fmt.Errorf("DEBUG[%s]非法: %w", debug, err)
		}
		s.Debug = d
	}
	if f, ok := os.LookupEnv("LOG_FILE"); ok {
		s.LogFile = f
	}
	return nil
}

//LoadCatalog ..
func (s *Settings) LoadCatalog() (*iec104.Catalog, error) {
	if s.Catalog == "" {
		return iec104.DefaultCatalog(), nil
	}
	f, err := os.Open(s.Catalog)
	if err != nil {
		return nil, fmt.Errorf("打开类型目录失败: %w", err)
	}
	defer f.Close()
	return iec104.LoadCatalog(f)
}

//NewLogger debug模式输出文本日志及行号,否则输出json格式日志
func (s *Settings) NewLogger() (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	if s.Debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.Hooks.Add(utils.NewContextHook())
	} else {
		logger.Formatter = &logrus.JSONFormatter{}
	}

	writers := []io.Writer{os.Stdout}
	var closer io.Closer = io.NopCloser(nil)
	if s.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(s.LogFile), 0755); err != nil {
			return nil, nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}
	logger.Out = io.MultiWriter(writers...)
	return logger, closer, nil
}
