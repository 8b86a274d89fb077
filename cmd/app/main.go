package main

import (
	"os"

	"github.com/spf13/cobra"
)

const rootLongDesc = `Сервис похожих товаров: текстовые рекомендации по каталогу и визуальный поиск по датасету изображений.

  similarity serve              Запуск HTTP и gRPC серверов
  similarity features rebuild   Перестроение базы векторов изображений`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "similarity",
		Short:         "Product similarity service",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newFeaturesCmd())

	return cmd
}

//	@title			Similarity API
//	@version		1.0
//	@description	Рекомендации похожих товаров по тексту и поиск по изображению
//	@BasePath		/
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
