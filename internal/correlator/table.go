package correlator

// Table 描述符表：pid -> (fd -> 绝对路径)
//
// 条目存在当且仅当该描述符处于打开状态。同一 (pid, fd) 重复 open 时覆盖旧路径，
// 子表为空时删除。只由读循环 goroutine 访问，不加锁。
type Table struct {
	files map[int]map[int]string
	count int
}

// NewTable 创建空的描述符表
func NewTable() *Table {
	return &Table{files: make(map[int]map[int]string)}
}

// Open 记录 (pid, fd) 指向 path
func (t *Table) Open(pid, fd int, path string) {
	fds, ok := t.files[pid]
	if !ok {
		fds = make(map[int]string)
		t.files[pid] = fds
	}
	if _, exists := fds[fd]; !exists {
		t.count++
	}
	fds[fd] = path
}

// Remove 删除 (pid, fd) 并返回其路径
func (t *Table) Remove(pid, fd int) (string, bool) {
	fds, ok := t.files[pid]
	if !ok {
		return "", false
	}
	path, ok := fds[fd]
	if !ok {
		return "", false
	}

	delete(fds, fd)
	t.count--
	if len(fds) == 0 {
		delete(t.files, pid)
	}
	return path, true
}

// Lookup 查询 (pid, fd) 的路径，不修改状态
func (t *Table) Lookup(pid, fd int) (string, bool) {
	path, ok := t.files[pid][fd]
	return path, ok
}

// HasProcess 该进程是否还有打开的描述符
func (t *Table) HasProcess(pid int) bool {
	_, ok := t.files[pid]
	return ok
}

// Len 打开的描述符总数
func (t *Table) Len() int {
	return t.count
}

// Processes 持有打开描述符的进程数
func (t *Table) Processes() int {
	return len(t.files)
}
