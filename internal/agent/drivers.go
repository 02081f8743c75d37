package agent

// 目标数据库驱动：database.driver 取 sqlite / postgres / mysql
import (
	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)
