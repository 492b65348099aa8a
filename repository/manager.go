package repository

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/govm-net/wasmlib/core"
)

const (
	codeFile     = "code.wasm"
	metadataFile = "metadata.json"
)

// Manager 合约代码管理器
type Manager struct {
	rootDir string // 代码根目录
}

// ContractCode 合约代码信息
type ContractCode struct {
	Name       string      // 合约名称
	Hname      core.Hname  // 名称哈希
	Code       []byte      // wasm 代码
	Funcs      []string    // 调用入口
	Views      []string    // 只读入口
	UpdateTime time.Time   // 最后更新时间
	Hash       core.ScHash // 代码哈希
}

// ContractMetadata 合约元数据
type ContractMetadata struct {
	Name       string    `json:"name"`
	Hname      string    `json:"hname"`
	Hash       string    `json:"hash"`
	Funcs      []string  `json:"funcs"`
	Views      []string  `json:"views"`
	UpdateTime time.Time `json:"update_time"`
}

// NewManager 创建代码管理器
func NewManager(rootDir string) (*Manager, error) {
	// 确保根目录存在
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		slog.Error("failed to create root directory", "dir", rootDir, "error", err)
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &Manager{
		rootDir: rootDir,
	}, nil
}

// RegisterCode stores the wasm code of contract name together with the entry points it exports
func (m *Manager) RegisterCode(name string, code []byte, funcs, views []string) (*ContractCode, error) {
	if name == "" {
		return nil, fmt.Errorf("contract name cannot be empty")
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("contract code cannot be empty")
	}

	// 检查合约是否已存在
	contractDir := m.getContractDir(name)
	if _, err := os.Stat(contractDir); err == nil {
		return nil, fmt.Errorf("contract already exists: %s", name)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to check contract directory: %w", err)
	}

	if err := os.MkdirAll(contractDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create contract directory: %w", err)
	}

	contractCode := &ContractCode{
		Name:       name,
		Hname:      core.NewHname(name),
		Code:       code,
		Funcs:      funcs,
		Views:      views,
		UpdateTime: time.Now().UTC(),
		Hash:       core.HashData(code),
	}

	if err := m.saveContractFiles(contractCode); err != nil {
		// 删除已创建的目录
		os.RemoveAll(contractDir)
		return nil, fmt.Errorf("failed to save contract files: %w", err)
	}
	slog.Info("contract registered", "name", name, "hash", contractCode.Hash.String())
	return contractCode, nil
}

// GetCode 获取合约代码
func (m *Manager) GetCode(name string) (*ContractCode, error) {
	return m.loadContractCode(name)
}

// List returns the metadata of every stored contract sorted by name
func (m *Manager) List() ([]ContractMetadata, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}

	var list []ContractMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metadata, err := m.loadMetadata(filepath.Join(m.rootDir, entry.Name()))
		if err != nil {
			slog.Warn("skipping contract directory", "dir", entry.Name(), "error", err)
			continue
		}
		list = append(list, *metadata)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// Remove deletes a stored contract
func (m *Manager) Remove(name string) error {
	dir := m.getContractDir(name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("contract not found: %s", name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove contract: %w", err)
	}
	return nil
}

// getContractDir 获取合约目录路径
func (m *Manager) getContractDir(name string) string {
	return filepath.Join(m.rootDir, core.NewHname(name).String())
}

// saveContractFiles 保存合约相关文件
func (m *Manager) saveContractFiles(code *ContractCode) error {
	dir := m.getContractDir(code.Name)

	if err := os.WriteFile(filepath.Join(dir, codeFile), code.Code, 0644); err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}

	// 创建元数据
	metadata := ContractMetadata{
		Name:       code.Name,
		Hname:      code.Hname.String(),
		Hash:       code.Hash.String(),
		Funcs:      code.Funcs,
		Views:      code.Views,
		UpdateTime: code.UpdateTime,
	}

	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, metadataFile), metadataBytes, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

func (m *Manager) loadMetadata(dir string) (*ContractMetadata, error) {
	metadataBytes, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata ContractMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &metadata, nil
}

// loadContractCode 从文件系统加载合约代码
func (m *Manager) loadContractCode(name string) (*ContractCode, error) {
	dir := m.getContractDir(name)

	code, err := os.ReadFile(filepath.Join(dir, codeFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read code: %w", err)
	}

	metadata, err := m.loadMetadata(dir)
	if err != nil {
		return nil, err
	}
	if metadata.Name != name {
		return nil, fmt.Errorf("hname collision: %s is stored as %s", name, metadata.Name)
	}

	// 校验代码哈希
	hash, err := core.HashFromString(metadata.Hash)
	if err != nil {
		return nil, fmt.Errorf("invalid hash in metadata: %w", err)
	}
	if actual := core.HashData(code); actual != hash {
		return nil, fmt.Errorf("code hash mismatch for %s: stored %s, actual %s", name, hash, actual)
	}

	return &ContractCode{
		Name:       metadata.Name,
		Hname:      core.NewHname(metadata.Name),
		Code:       code,
		Funcs:      metadata.Funcs,
		Views:      metadata.Views,
		UpdateTime: metadata.UpdateTime,
		Hash:       hash,
	}, nil
}
