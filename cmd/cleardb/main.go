package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"codeinject-go-server/bootstrap"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 命令行参数
	force := flag.Bool("force", false, "跳过确认提示，强制执行清库")
	truncate := flag.Bool("truncate", false, "使用 TRUNCATE（更快，会重置自增ID）")
	tables := flag.String("tables", "", "指定要清空的表，逗号分隔（例如: files,pages）；留空表示清空所有表")
	flag.Parse()

	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ 未找到 .env 文件，使用系统环境变量")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("❌ DATABASE_URL 环境变量未设置")
	}

	// 连接数据库
	db, err := bootstrap.NewDatabase(dsn, false, zap.NewNop())
	if err != nil {
		log.Fatalf("❌ 数据库连接失败: %v", err)
	}

	targetTables := allTables
	if *tables != "" {
		targetTables, err = parseTableNames(*tables)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
	}

	// 确认提示
	if !*force {
		fmt.Println("⚠️  警告：此操作将删除数据库中的所有数据！")
		fmt.Println("📊 受影响的表：")
		for _, t := range targetTables {
			fmt.Printf("   - %s\n", t)
		}

		fmt.Print("\n确认执行清库操作？(yes/no): ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))

		if input != "yes" && input != "y" {
			fmt.Println("❌ 操作已取消")
			return
		}
	}

	// 执行清库
	fmt.Println("\n🚀 开始清库...")

	for _, tableName := range targetTables {
		if err := clearTable(db, tableName, *truncate); err != nil {
			log.Printf("❌ 清空表 %s 失败: %v\n", tableName, err)
		} else {
			log.Printf("✅ 已清空表: %s\n", tableName)
		}
	}

	fmt.Println("\n🎉 清库操作完成！")
}

// allTables 所有需要清空的表名
// 注意：顺序很重要！先删除引用方（files 引用 sites，pages 引用 sites），再删除被引用的表
var allTables = []string{"files", "pages", "sites", "users"}

func clearTable(db *gorm.DB, table string, truncate bool) error {
	if truncate {
		// TRUNCATE 更快，会重置自增ID；CASCADE 处理外键约束
		return db.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error
	}
	// DELETE 可以触发触发器，但较慢
	return db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error
}

// parseTableNames 解析命令行指定的表名，只接受已知表，防止拼接任意 SQL
func parseTableNames(input string) ([]string, error) {
	known := make(map[string]bool, len(allTables))
	for _, t := range allTables {
		known[t] = true
	}

	var tables []string
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if !known[p] {
			return nil, fmt.Errorf("unknown table %q (known: %s)", p, strings.Join(allTables, ", "))
		}
		tables = append(tables, p)
	}
	return tables, nil
}
